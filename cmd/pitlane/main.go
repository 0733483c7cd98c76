package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clay "github.com/go-go-golems/clay/pkg"
	geppettolayers "github.com/go-go-golems/geppetto/pkg/layers"
	"github.com/go-go-golems/geppetto/pkg/steps/ai/settings"
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/help"
	help_cmd "github.com/go-go-golems/glazed/pkg/help/cmd"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/pitlane/pkg/archive"
	"github.com/go-go-golems/pitlane/pkg/catalog"
	"github.com/go-go-golems/pitlane/pkg/genai"
	"github.com/go-go-golems/pitlane/pkg/interview"
	"github.com/go-go-golems/pitlane/pkg/server"
	"github.com/go-go-golems/pitlane/pkg/session"
)

type ServeSettings struct {
	Addr              string `glazed.parameter:"addr"`
	Storyline         string `glazed.parameter:"storyline"`
	ArchiveDir        string `glazed.parameter:"archive-dir"`
	ArchiveDB         string `glazed.parameter:"archive-db"`
	GenTimeoutSeconds int    `glazed.parameter:"gen-timeout-seconds"`
}

type ServeCommand struct {
	*cmds.CommandDescription
}

func NewServeCommand() (*ServeCommand, error) {
	geLayers, err := geppettolayers.CreateGeppettoLayers()
	if err != nil {
		return nil, errors.Wrap(err, "create geppetto layers")
	}

	desc := cmds.NewCommandDescription(
		"serve",
		cmds.WithShort("Serve the post-race interview web UI"),
		cmds.WithFlags(
			parameters.NewParameterDefinition("addr", parameters.ParameterTypeString, parameters.WithDefault(":8080"), parameters.WithHelp("HTTP listen address")),
			parameters.NewParameterDefinition("storyline", parameters.ParameterTypeString, parameters.WithDefault(""), parameters.WithHelp("Path to a storyline YAML file (default: built-in racer storyline)")),
			parameters.NewParameterDefinition("archive-dir", parameters.ParameterTypeString, parameters.WithDefault("interviews"), parameters.WithHelp("Directory for markdown recap files")),
			parameters.NewParameterDefinition("archive-db", parameters.ParameterTypeString, parameters.WithDefault(""), parameters.WithHelp("SQLite file for recap storage instead of markdown files")),
			parameters.NewParameterDefinition("gen-timeout-seconds", parameters.ParameterTypeInteger, parameters.WithDefault(20), parameters.WithHelp("Per-call generation timeout")),
		),
		cmds.WithLayersList(geLayers...),
	)
	return &ServeCommand{CommandDescription: desc}, nil
}

func (c *ServeCommand) RunIntoWriter(ctx context.Context, parsed *layers.ParsedLayers, _ io.Writer) error {
	s := &ServeSettings{}
	if err := parsed.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "init serve settings")
	}

	cat := catalog.Default()
	if s.Storyline != "" {
		var err error
		cat, err = catalog.Load(s.Storyline)
		if err != nil {
			return errors.Wrap(err, "load storyline")
		}
	}

	var arch archive.Store
	if s.ArchiveDB != "" {
		dsn, err := archive.SQLiteDSNForFile(s.ArchiveDB)
		if err != nil {
			return errors.Wrap(err, "build archive DSN")
		}
		store, err := archive.NewSQLiteStore(dsn)
		if err != nil {
			return errors.Wrap(err, "open archive database")
		}
		defer func() { _ = store.Close() }()
		arch = store
	} else {
		if err := os.MkdirAll(s.ArchiveDir, 0755); err != nil {
			return errors.Wrap(err, "create archive directory")
		}
		arch = archive.NewMarkdownStore(s.ArchiveDir)
	}

	stepSettings, err := settings.NewStepSettingsFromParsedLayers(parsed)
	if err != nil {
		return errors.Wrap(err, "parse AI settings")
	}
	gen, err := genai.NewAdapterFromStepSettings(stepSettings, time.Duration(s.GenTimeoutSeconds)*time.Second)
	if err != nil {
		return errors.Wrap(err, "build generation adapter")
	}

	hub := server.NewHub()
	eng := interview.New(cat, session.NewMemoryStore(), adapterOrNil(gen), arch,
		interview.WithNotifier(hub))
	router, err := server.NewRouter(eng, hub)
	if err != nil {
		return errors.Wrap(err, "build router")
	}

	httpServer := &http.Server{
		Addr:              s.Addr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg := errgroup.Group{}
	eg.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigChan:
			log.Info().Msg("received interrupt signal, shutting down gracefully...")
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
			return err
		}
		hub.Close()
		log.Info().Msg("server shutdown complete")
		return nil
	})
	eg.Go(func() error {
		log.Info().Str("addr", s.Addr).Int("stages", cat.Len()).Msg("starting interview server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server listen error")
			return err
		}
		return nil
	})

	return eg.Wait()
}

// adapterOrNil keeps a typed-nil *EngineAdapter from masquerading as a
// non-nil interface value.
func adapterOrNil(a *genai.EngineAdapter) genai.Adapter {
	if a == nil {
		return nil
	}
	return a
}

func main() {
	root := &cobra.Command{
		Use:   "pitlane",
		Short: "Guided post-race interview service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.InitLoggerFromViper()
		},
	}

	helpSystem := help.NewHelpSystem()
	help_cmd.SetupCobraRootCommand(helpSystem, root)

	if err := clay.InitViper("pitlane", root); err != nil {
		cobra.CheckErr(err)
	}

	c, err := NewServeCommand()
	cobra.CheckErr(err)
	command, err := cli.BuildCobraCommand(c, cli.WithCobraMiddlewaresFunc(geppettolayers.GetCobraCommandGeppettoMiddlewares))
	cobra.CheckErr(err)
	root.AddCommand(command)
	cobra.CheckErr(root.Execute())
}
