package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"notesync/models"
	"notesync/syncengine"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var clientFlags struct {
	hubURL    string
	username  string
	password  string
	stateFile string
}

// clientSession is a logged-in engine over an in-memory store.
type clientSession struct {
	transport *syncengine.HTTPTransport
	store     *syncengine.MemoryStore
	engine    *syncengine.SyncEngine
}

func openClient(ctx context.Context) (*clientSession, error) {
	cfg, err := syncengine.LoadConfig()
	if err != nil {
		return nil, err
	}
	if clientFlags.hubURL != "" {
		cfg.HubURL = strings.TrimRight(clientFlags.hubURL, "/")
	}
	if clientFlags.username != "" {
		cfg.Username = clientFlags.username
	}
	if clientFlags.password != "" {
		cfg.Password = clientFlags.password
	}
	if clientFlags.stateFile != "" {
		cfg.StateFile = clientFlags.stateFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tr := syncengine.NewHTTPTransport(cfg.HubURL, cfg.Username, cfg.Password, cfg.RequestTimeout)
	if err := tr.Login(ctx); err != nil {
		return nil, err
	}

	store := syncengine.NewMemoryStore()
	engine, err := syncengine.New(tr, store, tr, cfg)
	if err != nil {
		return nil, err
	}
	return &clientSession{transport: tr, store: store, engine: engine}, nil
}

var pullAll bool

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch notes changed since the last sync",
	Long: `Fetch notes changed since the last sync and list them.

Each invocation starts with an empty local store; only the watermark in the
state file carries over. A plain pull therefore lists the delta since the
previous run. Use --all to list everything the hub holds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, err := openClient(ctx)
		if err != nil {
			return err
		}
		defer sess.engine.Close()

		pull := sess.engine.Pull
		if pullAll {
			pull = sess.engine.Resync
		}
		res, err := pull(ctx)
		if err != nil {
			return err
		}

		for _, id := range res.Applied {
			meta, _ := sess.store.Note(id)
			state := ""
			if meta.IsDeleted {
				state = " (trashed)"
			}
			fmt.Printf("%-36s  %-15s  %s  %s%s\n", meta.ID, meta.Type,
				meta.UpdatedAt.Format(time.RFC3339), meta.Title, state)
		}
		fmt.Printf("%d notes changed, watermark %s\n", len(res.Applied),
			sess.engine.Watermark().Format(time.RFC3339Nano))
		return nil
	},
}

var pushTextID string

var pushTextCmd = &cobra.Command{
	Use:   "push-text <title> <text>",
	Short: "Create or replace a text note on the hub",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, err := openClient(ctx)
		if err != nil {
			return err
		}
		defer sess.engine.Close()

		id := pushTextID
		if id == "" {
			id = uuid.New().String()
		}
		content := models.DeltaToPages(models.Delta{Ops: []models.DeltaOp{{Insert: args[1]}}})

		now := time.Now().UTC()
		sess.store.SaveNote(models.NoteMetadata{
			ID:        id,
			Title:     args[0],
			Type:      models.NoteTypeStructuredText,
			UpdatedAt: now,
			CreatedAt: now,
		})
		sess.store.SaveContent(id, content, now)
		sess.engine.MarkDirty(id)

		res, err := sess.engine.FlushNow(ctx)
		if err != nil {
			return err
		}
		switch {
		case len(res.Synced) == 1:
			fmt.Printf("pushed %s\n", id)
		case len(res.Ignored) == 1:
			fmt.Printf("hub already holds a newer version of %s\n", id)
		default:
			fmt.Printf("%s was not accepted by the hub\n", id)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show hub health and this device's sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, err := openClient(ctx)
		if err != nil {
			return err
		}
		defer sess.engine.Close()

		health, err := sess.transport.Health(ctx)
		if err != nil {
			return err
		}
		st := sess.engine.Status()

		fmt.Printf("hub:          %s (server time %s)\n", health.Status, health.ServerTime.Format(time.RFC3339))
		fmt.Printf("user:         %s\n", sess.transport.UserGUID())
		fmt.Printf("device:       %s\n", st.DeviceID)
		fmt.Printf("watermark:    %s\n", st.Watermark.Format(time.RFC3339Nano))
		if st.LastSuccess != nil {
			fmt.Printf("last success: %s\n", st.LastSuccess.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{pullCmd, pushTextCmd, statusCmd} {
		c.Flags().StringVar(&clientFlags.hubURL, "hub", "", "Hub URL (overrides NOTESYNC_HUB_URL)")
		c.Flags().StringVar(&clientFlags.username, "user", "", "Username (overrides NOTESYNC_USERNAME)")
		c.Flags().StringVar(&clientFlags.password, "password", "", "Password (overrides NOTESYNC_PASSWORD)")
		c.Flags().StringVar(&clientFlags.stateFile, "state", "", "State file (overrides NOTESYNC_STATE_FILE)")
		rootCmd.AddCommand(c)
	}
	pullCmd.Flags().BoolVar(&pullAll, "all", false, "Ignore the watermark and fetch every note")
	pushTextCmd.Flags().StringVar(&pushTextID, "id", "", "Note id to write (default: a new UUID)")
}
