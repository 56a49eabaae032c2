package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bilgisen/newsroom/internal/actions"
	"github.com/bilgisen/newsroom/internal/client"
	"github.com/bilgisen/newsroom/internal/logger"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	timeout   time.Duration
	retries   int
	tokenPath string

	page     int
	pageSize int

	deleteIndex int

	save struct {
		id, title, desc, content string
		contentFile, editValue   string
		cover, file              string
		version                  int64
	}
)

var rootCmd = &cobra.Command{
	Use:           "cmsctl",
	Short:         "cmsctl - command line admin for the newsroom article API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var loginCmd = &cobra.Command{
	Use:   "login [token]",
	Short: "Store the auth token sent with every request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens, err := tokenStore()
		if err != nil {
			return err
		}
		if err := tokens.SetToken(args[0]); err != nil {
			return err
		}
		logger.Get().Info().Str("path", tokens.Path).Msg("Token saved")
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List articles, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newActions()
		if err != nil {
			return err
		}
		result, err := a.FetchList(cmd.Context(), page, pageSize)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Fetch one article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newActions()
		if err != nil {
			return err
		}
		article, err := a.FetchOne(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(article)
	},
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Create an article, or update one with --id",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newActions()
		if err != nil {
			return err
		}

		params := actions.SaveParams{ID: save.id, Version: save.version}
		flags := cmd.Flags()
		optional := func(name string, value string) *string {
			if !flags.Changed(name) {
				return nil
			}
			return &value
		}
		params.Title = optional("title", save.title)
		params.Desc = optional("desc", save.desc)
		params.Content = optional("content", save.content)
		params.EditValue = optional("edit-value", save.editValue)
		params.Cover = optional("cover", save.cover)

		if save.contentFile != "" {
			data, err := os.ReadFile(save.contentFile)
			if err != nil {
				return fmt.Errorf("read content file: %w", err)
			}
			content := string(data)
			params.Content = &content
		}

		if save.file != "" {
			f, err := os.Open(save.file)
			if err != nil {
				return fmt.Errorf("open cover file: %w", err)
			}
			defer f.Close()
			params.File = &client.File{Field: "file", Name: filepath.Base(save.file), Reader: f}
		}

		article, err := a.Save(cmd.Context(), params)
		if err != nil {
			return err
		}
		return printJSON(article)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete an article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newActions()
		if err != nil {
			return err
		}
		acks, err := a.Delete(cmd.Context(), args[0], deleteIndex)
		if err != nil {
			return err
		}
		return printJSON(acks)
	},
}

func tokenStore() (client.FileTokens, error) {
	if tokenPath != "" {
		return client.FileTokens{Path: tokenPath}, nil
	}
	path, err := client.DefaultTokenPath()
	if err != nil {
		return client.FileTokens{}, err
	}
	return client.FileTokens{Path: path}, nil
}

func newActions() (*actions.Articles, error) {
	tokens, err := tokenStore()
	if err != nil {
		return nil, err
	}

	store := actions.NewStore()
	notifier := client.LogNotifier{Log: logger.With("cmsctl")}
	c := client.New(client.Config{
		BaseURL:    serverURL,
		Timeout:    timeout,
		RetryCount: retries,
		Tokens:     tokens,
		Notifier:   store.Notifier(notifier),
	})
	return actions.New(c, store), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := logger.Init(logger.Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Output: "stderr",
		Pretty: true,
	}); err != nil {
		panic(err)
	}

	defaultServer := os.Getenv("CMS_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:3000"
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "Base URL of the article API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", 2, "Retries for read requests")
	rootCmd.PersistentFlags().StringVar(&tokenPath, "token-file", "", "Token file (default ~/.config/cmsctl/token)")

	listCmd.Flags().IntVar(&page, "page", 1, "Page number, starting at 1")
	listCmd.Flags().IntVar(&pageSize, "page-size", 10, "Articles per page")

	saveCmd.Flags().StringVar(&save.id, "id", "", "Article id to update")
	saveCmd.Flags().StringVar(&save.title, "title", "", "Title")
	saveCmd.Flags().StringVar(&save.desc, "desc", "", "Description")
	saveCmd.Flags().StringVar(&save.content, "content", "", "HTML content")
	saveCmd.Flags().StringVar(&save.contentFile, "content-file", "", "Read HTML content from a file")
	saveCmd.Flags().StringVar(&save.editValue, "edit-value", "", "Editor source value")
	saveCmd.Flags().StringVar(&save.cover, "cover", "", "Existing cover path or URL")
	saveCmd.Flags().StringVar(&save.file, "file", "", "Cover image to upload")
	saveCmd.Flags().Int64Var(&save.version, "version", 0, "Expected version; the save fails if the article changed")

	deleteCmd.Flags().IntVar(&deleteIndex, "index", -1, "Position of the article in the last listed page")

	rootCmd.AddCommand(loginCmd, listCmd, getCmd, saveCmd, deleteCmd)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Get().Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
