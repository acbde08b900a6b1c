package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bencan1a/calendarbot/internal/cachemgr"
	"github.com/bencan1a/calendarbot/internal/clock"
	"github.com/bencan1a/calendarbot/internal/eventmodel"
	"github.com/bencan1a/calendarbot/internal/store"
)

func newCacheCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the event cache",
	}
	cmd.AddCommand(newCacheInitCommand(opts))
	cmd.AddCommand(newCacheImportCommand(opts))
	cmd.AddCommand(newCacheCleanupCommand(opts))
	return cmd
}

func newCacheInitCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the cache database file and apply the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd)

			s, err := store.Open(opts.DBPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer s.Close()

			return formatter.Success(fmt.Sprintf("initialized cache at %s", opts.DBPath))
		},
	}
}

// importRecord is the on-disk shape accepted by "cache import": a
// stand-in for the out-of-scope feed fetcher, letting callers (tests,
// operators replaying a captured feed) seed the cache directly.
type importRecord struct {
	SourceID string `json:"source_id"`

	StartInstant time.Time `json:"start_instant"`
	EndInstant   time.Time `json:"end_instant"`
	StartZone    string    `json:"start_zone"`
	EndZone      string    `json:"end_zone"`
	AllDay       bool      `json:"all_day"`

	Subject          string `json:"subject"`
	BodyPreview      string `json:"body_preview"`
	LocationName     string `json:"location_name"`
	LocationAddress  string `json:"location_address"`
	WebLink          string `json:"web_link"`
	OnlineMeetingURL string `json:"online_meeting_url"`

	ShowAs        string `json:"show_as"`
	Cancelled     bool   `json:"cancelled"`
	Organizer     bool   `json:"organizer"`
	Online        bool   `json:"online"`
	Recurring     bool   `json:"recurring"`
	IsPrivate     bool   `json:"is_private"`
	OrganizerName string `json:"organizer_name"`
	OrganizerEmail string `json:"organizer_email"`

	SeriesMasterID       string `json:"series_master_id"`
	RecurrenceInstanceID string `json:"recurrence_instance_id"`
	IsInstance           bool   `json:"is_instance"`

	RawBytes string `json:"raw_bytes"`
}

// buildImportBatch parses a JSON array of importRecord values out of
// data and constructs the Event/RawEvent batch cache import and the
// serve --feed fetcher both ingest.
func buildImportBatch(data []byte, now time.Time) ([]eventmodel.Event, []eventmodel.RawEvent, error) {
	var records []importRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil, fmt.Errorf("parse import records: %w", err)
	}

	events := make([]eventmodel.Event, 0, len(records))
	raws := make([]eventmodel.RawEvent, 0, len(records))
	for i, rec := range records {
		eventID := fmt.Sprintf("evt_%s_%d", rec.SourceID, i)
		ev, err := eventmodel.NewEvent(eventID, eventmodel.UpstreamRecord{
			SourceID:             rec.SourceID,
			StartInstant:         rec.StartInstant,
			EndInstant:           rec.EndInstant,
			StartZone:            rec.StartZone,
			EndZone:              rec.EndZone,
			AllDay:               rec.AllDay,
			Subject:              rec.Subject,
			BodyPreview:          rec.BodyPreview,
			LocationName:         rec.LocationName,
			LocationAddress:      rec.LocationAddress,
			WebLink:              rec.WebLink,
			OnlineMeetingURL:     rec.OnlineMeetingURL,
			ShowAs:               eventmodel.ShowAs(rec.ShowAs),
			Cancelled:            rec.Cancelled,
			Organizer:            rec.Organizer,
			Online:               rec.Online,
			Recurring:            rec.Recurring,
			IsPrivate:            rec.IsPrivate,
			OrganizerName:        rec.OrganizerName,
			OrganizerEmail:       rec.OrganizerEmail,
			SeriesMasterID:       rec.SeriesMasterID,
			RecurrenceInstanceID: rec.RecurrenceInstanceID,
			IsInstance:           rec.IsInstance,
		}, now)
		if err != nil {
			return nil, nil, fmt.Errorf("build event for source_id %q: %w", rec.SourceID, err)
		}
		events = append(events, ev)

		rawPayload := rec.RawBytes
		if rawPayload == "" {
			rawPayload = string(data)
		}
		raws = append(raws, eventmodel.RawEventFromBytes(rec.SourceID, []byte(rawPayload), now))
	}
	return events, raws, nil
}

func newCacheImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Ingest a JSON array of event records, as a captured feed would be replayed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd)

			data, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "read import file", err)
			}

			s, err := store.Open(opts.DBPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer s.Close()

			c := clock.NewReal()
			now := c.Now().UTC()
			mgr := cachemgr.New(s, c)

			events, raws, err := buildImportBatch(data, now)
			if err != nil {
				return WrapExitError(ExitCommandError, "parse import file", err)
			}

			if err := mgr.Ingest(cmd.Context(), events, raws); err != nil {
				return WrapExitError(ExitFailure, "ingest imported events", err)
			}

			return formatter.Success(fmt.Sprintf("imported %d events", len(events)))
		},
	}
}

func newCacheCleanupCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove events and raw events past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd)

			s, err := store.Open(opts.DBPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer s.Close()

			mgr := cachemgr.New(s, clock.NewReal())
			eventsRemoved, rawRemoved, err := mgr.Cleanup(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "run cleanup", err)
			}

			return formatter.Success(map[string]int64{
				"events_removed": eventsRemoved,
				"raw_removed":    rawRemoved,
			})
		},
	}
}
