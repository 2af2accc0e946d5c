package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/hakari/internal/auth"
	"github.com/ashita-ai/hakari/internal/model"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with the server's private key",
		Long: `Mint a bearer token signed with the server's Ed25519 private key.

	hakarictl token --private-key jwt.pem --subject ci --role writer --project proj-a

The token is printed on standard output; its expiry goes to standard error.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keyPath, _ := cmd.Flags().GetString("private-key")
			subject, _ := cmd.Flags().GetString("subject")
			role, _ := cmd.Flags().GetString("role")
			projects, _ := cmd.Flags().GetStringSlice("project")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			parsed, err := model.ParseRole(role)
			if err != nil {
				return err
			}
			mgr, err := auth.NewSigningManager(keyPath, ttl)
			if err != nil {
				return err
			}
			token, exp, err := mgr.IssueToken(subject, parsed, projects, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().String("private-key", os.Getenv("HAKARI_JWT_PRIVATE_KEY"), "PKCS#8 PEM Ed25519 private key")
	cmd.Flags().String("subject", "", "token subject")
	_ = cmd.MarkFlagRequired("subject")
	cmd.Flags().String("role", string(model.RoleReader), "admin, writer or reader")
	cmd.Flags().StringSlice("project", nil, `projects the token grants ("*" for all)`)
	cmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	return cmd
}
