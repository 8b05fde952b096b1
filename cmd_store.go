package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wingspan/pkg/models"
	"wingspan/pkg/services"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE:  runMigrate,
}

var importCmd = &cobra.Command{
	Use:   "import DIR",
	Short: "Import articles from front matter files",
	Long: `Walks DIR for .md, .json, .toml and .yaml files written by the export
endpoint and saves each as an article. Existing articles are matched by slug.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage editor accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an editor account",
	Long: `Creates an editor account. Permissions are repeatable --perm flags, for
example --perm post --perm edit-own, or --perm all.`,
	RunE: runUserAdd,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List editor accounts",
	RunE:  runUserList,
}

var (
	userName     string
	userEmail    string
	userPassword string
	userPerms    []string
)

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "display name")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "login e-mail")
	userAddCmd.Flags().StringVar(&userPassword, "password", "", "password (leave empty for GitHub-only login)")
	userAddCmd.Flags().StringSliceVar(&userPerms, "perm", nil, "permission to grant ("+strings.Join(models.PermissionNames(), ", ")+", all)")
	_ = userAddCmd.MarkFlagRequired("name")
	_ = userAddCmd.MarkFlagRequired("email")

	userCmd.AddCommand(userAddCmd, userListCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	logger.Info("schema up to date", zap.String("driver", cfg.Database.Driver))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := services.NewImporter(a.articles, a.users, logger).ImportDir(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "created: %d\nupdated: %d\n", report.Created, report.Updated)
	for _, w := range report.Warnings {
		fmt.Fprintln(out, w)
	}
	if len(report.Failed) == 0 {
		return nil
	}
	paths := make([]string, 0, len(report.Failed))
	for p := range report.Failed {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Fprintf(out, "failed: %s: %v\n", p, report.Failed[p])
	}
	return fmt.Errorf("%d file(s) failed to import", len(report.Failed))
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	perms, err := models.ParsePermissions(userPerms)
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	u, err := a.users.Create(cmd.Context(), nil, services.UserInput{
		Name:        userName,
		Email:       userEmail,
		Password:    userPassword,
		Permissions: perms,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s <%s> (%s)\n", u.Name, u.Email, strings.Join(u.Permissions.Names(), ", "))
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	users, err := a.users.List(cmd.Context())
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, strings.Join(u.Permissions.Names(), ","))
	}
	return nil
}
