package main

import (
	"notesync/models"
	"notesync/web"

	"github.com/rohanthewiz/logger"
	"github.com/spf13/cobra"
)

var serveFlags struct {
	dbPath    string
	addr      string
	jwtSecret string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync hub",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := models.LoadServerConfig()
		if serveFlags.dbPath != "" {
			cfg.DBPath = serveFlags.dbPath
		}
		if serveFlags.addr != "" {
			cfg.Addr = serveFlags.addr
		}
		if serveFlags.jwtSecret != "" {
			cfg.JWTSecret = serveFlags.jwtSecret
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := models.InitJWT(cfg.JWTSecret); err != nil {
			return err
		}
		if cfg.JWTSecret == "" {
			logger.Info("NOTESYNC_JWT_SECRET not set, using the development key")
		}

		if err := models.InitDB(cfg.DBPath); err != nil {
			return err
		}
		defer models.CloseDB()

		srv := web.NewServer(cfg.Addr, verbose)
		return web.Run(srv, cfg.Addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.dbPath, "db", "", "DuckDB file (overrides NOTESYNC_DB_PATH)")
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "Listen address (overrides NOTESYNC_ADDR)")
	serveCmd.Flags().StringVar(&serveFlags.jwtSecret, "jwt-secret", "", "Token signing secret (overrides NOTESYNC_JWT_SECRET)")
	rootCmd.AddCommand(serveCmd)
}
