package cli

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/conduitchat/conduit/internal/auth"
	"github.com/conduitchat/conduit/internal/config"
	"github.com/conduitchat/conduit/internal/controllers"
	"github.com/conduitchat/conduit/internal/history"
	"github.com/conduitchat/conduit/internal/orchestrator"
	"github.com/conduitchat/conduit/internal/registry"
	"github.com/conduitchat/conduit/internal/server"
	"github.com/conduitchat/conduit/internal/toolpool"
	"github.com/conduitchat/conduit/internal/toolschema"
)

func NewStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the gateway",
		Long:  `Start the gateway service: load the provider and tool registries and serve the chat API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart()
		},
	}

	return cmd
}

func runStart() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info().Msg("Starting gateway service")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	providerDefs, err := config.LoadProviders(cfg.ProvidersFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load provider definitions")
	}
	toolDefs, err := config.LoadTools(cfg.ToolsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load tool definitions")
	}

	access := auth.NewStaticEvaluator(auth.DefaultGroups())
	pool := toolpool.NewPool(nil)
	defer pool.CloseAll()

	providerRegistry, err := registry.NewProviderRegistry(access, registry.DefaultAdapters(), providerDefs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build provider registry")
	}
	toolRegistry, err := registry.NewToolRegistry(access, pool, toolDefs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build tool registry")
	}

	registerLocalHandlers(toolRegistry)

	translator := toolschema.New(toolRegistry)
	chatLog := history.NewLog()
	orc := orchestrator.New(providerRegistry, toolRegistry, translator, chatLog)

	app := server.NewHTTPServer(server.HTTPServerDependencies{
		RegistryController: controllers.NewRegistryController(controllers.RegistryControllerDependencies{
			Providers: providerRegistry,
			Tools:     toolRegistry,
		}),
		ChatController: controllers.NewChatController(controllers.ChatControllerDependencies{
			Orchestrator: orc,
		}),
	})

	log.Info().Str("address", cfg.HTTPAddress).Msg("Gateway listening")

	if err := app.Listen(cfg.HTTPAddress, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	}); err != nil {
		log.Error().Err(err).Msg("HTTP server failed")
	}

	log.Info().Msg("Gateway service stopped")
	return nil
}

// registerLocalHandlers binds the in-process implementations for local
// tools named in the definition file. The echo tool answers with its own
// parameters, for connectivity checks.
func registerLocalHandlers(toolRegistry *registry.ToolRegistry) {
	if _, ok := toolRegistry.Get("echo"); !ok {
		return
	}

	err := toolRegistry.RegisterLocalHandler("echo", func(ctx context.Context, params map[string]any) (string, error) {
		payload, err := json.Marshal(params)
		if err != nil {
			return "", err
		}
		return string(payload), nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to register echo handler")
	}
}
