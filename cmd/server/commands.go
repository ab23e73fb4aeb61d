package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cv-chat-go/internal/service"
	"cv-chat-go/pkg/log"
	"cv-chat-go/pkg/token"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE",
	Short: "Ingest a CV file and print the stored record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		return withApp(cmd, func(a *app) error {
			corpus, err := a.ingestionService.Ingest(cmd.Context(), service.Upload{
				Name:     name,
				FileName: filepath.Base(args[0]),
				Data:     data,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, corpus)
		})
	},
}

var askCmd = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Ask a question about a stored CV",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cvID, _ := cmd.Flags().GetUint("cv")
		question := strings.Join(args, " ")

		return withApp(cmd, func(a *app) error {
			result, err := a.chatService.Ask(cmd.Context(), cvID, question)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Response)
			if result.Degraded {
				fmt.Fprintln(cmd.ErrOrStderr(), "(degraded answer)")
			}
			return nil
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token signed with jwt.secret",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is not configured")
		}
		subject, _ := cmd.Flags().GetString("subject")
		signed, err := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours).GenerateToken(subject)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a stored CV with its collection and archived file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(a *app) error {
			return a.corpusService.Delete(cmd.Context(), id)
		})
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Compare stored CVs with their vector collections once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(a *app) error {
			found, err := a.auditService.Run(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, found)
		})
	},
}

func init() {
	ingestCmd.Flags().String("name", "", "display name of the CV (defaults to the file name)")
	askCmd.Flags().Uint("cv", 0, "id of the CV to ask about")
	_ = askCmd.MarkFlagRequired("cv")
	tokenCmd.Flags().String("subject", "cli", "subject claim of the token")
}

// withApp runs fn against a fully wired app and releases it afterwards.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}
