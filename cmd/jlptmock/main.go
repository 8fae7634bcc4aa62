package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/nihongolab/jlptmock/internal/content"
	"github.com/nihongolab/jlptmock/internal/handler"
	appI18n "github.com/nihongolab/jlptmock/internal/i18n"
	"github.com/nihongolab/jlptmock/internal/model"
	"github.com/nihongolab/jlptmock/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "jlptmock",
		Short: "JLPT mock exam web application",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `jlptmock --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "jlptmock.db", "SQLite database path")
	f.StringSliceP("exams", "e", nil, "Paths to exam JSON files (repeatable)")
	f.StringP("lang", "l", "en", "UI language (en, ja)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /jlpt)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.Int("max-score", 180, "Maximum score an exam is scaled to")
	f.Int("pass-percent", 60, "Percentage of correct answers required to pass")
	f.String("admin-password", "", "Initial admin password (or set JLPTMOCK_ADMIN_PASSWORD)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all exam results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "jlptmock.db", "SQLite database path")
	f.Int("pass-percent", 60, "Percentage of correct answers required to pass")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("JLPTMOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("jlptmock")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/jlptmock")
	v.AddConfigPath("/etc/jlptmock")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedUsers(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}

	if err := loadExams(db, v.GetStringSlice("exams")); err != nil {
		return fmt.Errorf("load exams: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.ServerConfig{
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		MaxScore:      v.GetInt("max-score"),
		PassPercent:   v.GetInt("pass-percent"),
	}

	h, err := handler.New(db, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"max_score", cfg.MaxScore,
		"pass_percent", cfg.PassPercent,
		"base_path", basePath,
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportAllResults(v.GetInt("pass-percent"))
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

// loadExams seeds the bundled sample exams into an empty database, then
// imports any exam files named on the command line. A file whose content
// changed since its first import is skipped so stored results keep
// matching the questions they were graded against.
func loadExams(db *store.Store, paths []string) error {
	count, err := db.ExamCount()
	if err != nil {
		return err
	}
	if count == 0 {
		seeds, err := content.SeedExams(time.Now())
		if err != nil {
			return fmt.Errorf("build seed exams: %w", err)
		}
		for _, e := range seeds {
			if err := db.SaveExam(e); err != nil {
				return fmt.Errorf("save seed exam %s: %w", e.ID, err)
			}
		}
		slog.Info("seeded bundled exams", "count", len(seeds))
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}

		if storedHash == hash {
			slog.Info("exam file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("exam file changed since last import, skipping to avoid breaking existing results",
				"path", path)
			continue
		}

		exam, err := content.Parse(data, model.ExamPublished, time.Now())
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if err := db.SaveExam(exam); err != nil {
			return fmt.Errorf("save exam from %s: %w", path, err)
		}

		if err := db.SetImportedFileHash(path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported exam", "path", path, "exam", exam.ID, "questions", exam.TotalQuestions)
	}

	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// seedUsers creates the initial accounts when the user table is empty: an
// admin plus demo teacher and student accounts, all with the initial
// password. The admin is expected to replace the demo accounts.
func seedUsers(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or JLPTMOCK_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	seeds := []model.User{
		{Username: "admin", DisplayName: "Administrator", Role: model.UserRoleAdmin},
		{Username: "teacher", DisplayName: "Demo Teacher", Role: model.UserRoleTeacher},
		{Username: "student", DisplayName: "Demo Student", Role: model.UserRoleStudent},
	}
	for _, u := range seeds {
		u.PasswordHash = string(hash)
		u.Active = true
		if _, err := db.CreateUser(u); err != nil {
			return fmt.Errorf("create %s user: %w", u.Username, err)
		}
	}

	slog.Info("seeded initial users", "usernames", "admin, teacher, student")
	return nil
}
