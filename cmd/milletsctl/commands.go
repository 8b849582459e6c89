package main

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"milletsmon/internal/backend"
	"milletsmon/internal/model"
	"milletsmon/internal/report"
	"milletsmon/internal/store"
	"milletsmon/internal/upload"
)

var (
	loginEmail    string
	loginPassword string

	reportTitle    string
	reportDistrict string
	reportKind     string
	reportFrom     string
	reportTo       string

	uploadFolder string
)

// loginCmd 登录并打印后端 token
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and print a backend token",
	RunE:  runLogin,
}

// projectsCmd 按当前账号角色列出项目
var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects visible to the current account",
	Long: `List projects using the same routing as the portal:
admins see every project, other roles only their own.
Without a token the public project list is shown.`,
	RunE: runProjects,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build a progress report from the backend and print it as CSV",
	RunE:  runReport,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a file through a signed URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

var rmFileCmd = &cobra.Command{
	Use:   "rm-file <key>",
	Short: "Delete an uploaded file by key",
	Args:  cobra.ExactArgs(1),
	RunE:  runRmFile,
}

func runLogin(cmd *cobra.Command, args []string) error {
	if loginPassword == "" {
		return fmt.Errorf("--password or MILLETS_PASSWORD is required")
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	res, err := newClient().Login(ctx, loginEmail, loginPassword)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Logged in as %s (%s)\n", res.User.Email, res.User.Role)
	fmt.Fprintln(cmd.OutOrStdout(), res.Token)
	return nil
}

func runProjects(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	client := newClient()

	id, err := callerIdentity(ctx, client)
	if err != nil {
		return err
	}

	projects, err := client.ListProjects(ctx, id)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tDISTRICT\tSTATUS\tSTART\tEND")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Title, p.District, p.Status,
			p.StartDate.Format(time.DateOnly), p.EndDate.Format(time.DateOnly))
	}
	return w.Flush()
}

// callerIdentity 通过 /api/auth/me 解析 token 对应的账号；未登录时为访客
func callerIdentity(ctx context.Context, client *backend.Client) (backend.Identity, error) {
	if token == "" {
		return backend.Identity{}, nil
	}
	u, err := client.Me(ctx, token)
	if err != nil {
		return backend.Identity{}, fmt.Errorf("resolve account: %w", err)
	}
	return backend.Identity{Token: token, UserID: u.ID, Role: u.Role}, nil
}

func runReport(cmd *cobra.Command, args []string) error {
	if err := requireToken(); err != nil {
		return err
	}
	f := report.Filter{District: reportDistrict, Kind: model.Kind(reportKind)}
	var err error
	if f.From, err = parseDate(reportFrom); err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	if f.To, err = parseDate(reportTo); err != nil {
		return fmt.Errorf("--to: %w", err)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()
	client := newClient()

	id, err := callerIdentity(ctx, client)
	if err != nil {
		return err
	}

	activities := store.NewActivityStores(client, store.Options{Logger: logger}, nil)
	rep, err := report.NewBuilder(activities, logger).Build(ctx, id, reportTitle, "milletsctl", f)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	return report.WriteCSV(cmd.OutOrStdout(), rep)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if err := requireToken(); err != nil {
		return err
	}
	path := args[0]
	body, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	stored, err := upload.NewUploader(newClient(), logger).Upload(ctx, token, uploadFolder, filepath.Base(path), contentType, body)
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", stored.Key, stored.FileURL)
	return nil
}

func runRmFile(cmd *cobra.Command, args []string) error {
	if err := requireToken(); err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	if err := upload.NewUploader(newClient(), logger).Delete(ctx, token, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Deleted %s\n", args[0])
	return nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}
