package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/TheBrightLayer/ChirpWhirpServer/api"
	"github.com/TheBrightLayer/ChirpWhirpServer/config"
	"github.com/TheBrightLayer/ChirpWhirpServer/database"
	"github.com/TheBrightLayer/ChirpWhirpServer/models"
	"github.com/TheBrightLayer/ChirpWhirpServer/services"
)

func main() {
	envPath := config.LoadDotEnv()
	cfg := config.New()
	configureLogger(cfg)
	log.Info().Str("envFile", envPath).Msg("Initializing app...")

	ctx := context.Background()

	if ssmPath := config.GetString(cfg, "AWS_SSM_PATH", ""); ssmPath != "" {
		overlay, err := config.LoadSSM(ctx, config.GetString(cfg, "AWS_REGION", ""), ssmPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", ssmPath).Msg("Error loading SSM parameters")
		}
		cfg = config.Merge(cfg, overlay)
		configureLogger(cfg)
		log.Info().Int("parameters", len(overlay)).Msg("Loaded SSM parameters")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to database")
	}
	currentDB := database.New(db)
	defer currentDB.Close()

	// If generating models, run generation and exit
	if config.GetBool(cfg, "GENERATE_MODELS", false) {
		log.Info().Msg("Generating models and query helpers...")
		if err := models.GenerateModels(db, config.GetString(cfg, "GENERATE_MODELS_OUT", "./generated")); err != nil {
			log.Fatal().Err(err).Msg("Error generating models")
		}
		return
	}

	if config.GetBool(cfg, "AUTO_MIGRATE", true) {
		if err := models.Migrate(db); err != nil {
			log.Fatal().Err(err).Msg("Error migrating database")
		}
	}

	smtpTransport := services.NewSMTPTransport(services.SMTPConfigFromConfig(cfg))
	defer smtpTransport.Close()
	if err := smtpTransport.Verify(ctx); err != nil {
		log.Warn().Err(err).Msg("SMTP transport not ready, sends will retry the connection")
	}

	deps, err := buildDependencies(ctx, cfg, smtpTransport)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing services")
	}

	errChannel := make(chan error)
	defer close(errChannel)

	server, err := api.NewServer(cfg, currentDB, deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing server")
	}

	go server.Start(errChannel)

	// Listen for interrupt signals to gracefully shutdown the server
	go listenToInterrupt(errChannel)

	fatalErr := <-errChannel
	log.Info().Msgf("Closing server: %v", fatalErr)

	server.ShutdownGracefully(30 * time.Second)
}

func buildDependencies(ctx context.Context, cfg map[string]string, smtpTransport *services.SMTPTransport) (api.Dependencies, error) {
	renderer, err := services.NewRenderer(services.BrandingFromConfig(cfg))
	if err != nil {
		return api.Dependencies{}, err
	}
	resolver := services.NewAttachmentResolver(config.GetString(cfg, "ATTACHMENT_DIR", "files"))
	proposalCfg := services.ProposalConfigFromConfig(cfg)

	var alerter services.InquiryAlerter
	if twilioAlerter := services.NewTwilioAlerterFromConfig(cfg); twilioAlerter != nil {
		alerter = twilioAlerter
	}

	var apiTransport services.Mailer = smtpTransport
	resendKey := config.GetString(cfg, "RESEND_API_KEY", "")
	if resendKey != "" && strings.ToLower(config.GetString(cfg, "MAIL_API_TRANSPORT", "resend")) == "resend" {
		apiTransport = services.NewResendTransport(resendKey)
	}
	log.Info().Str("transport", apiTransport.Name()).Msg("Quote replies mail transport selected")

	var translator services.Translator
	llmTranslator, err := services.NewLLMTranslatorFromConfig(cfg)
	if err != nil {
		return api.Dependencies{}, err
	}
	if llmTranslator != nil {
		translator = llmTranslator
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, blogs are served untranslated")
	}

	covers, err := services.NewCoverStoreFromConfig(ctx, cfg)
	if err != nil {
		return api.Dependencies{}, err
	}

	return api.Dependencies{
		Proposal:   services.NewProposalService(services.VariantProposal, smtpTransport, renderer, resolver, alerter, proposalCfg),
		QuoteReply: services.NewProposalService(services.VariantQuoteReply, apiTransport, renderer, resolver, alerter, proposalCfg),
		Translator: services.NewBlogTranslator(translator, cfg),
		Covers:     covers,
	}, nil
}

// configureLogger applies LOG_LEVEL and LOG_FORMAT to the global logger.
func configureLogger(cfg map[string]string) {
	level, err := zerolog.ParseLevel(strings.ToLower(config.GetString(cfg, "LOG_LEVEL", "info")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if strings.ToLower(config.GetString(cfg, "LOG_FORMAT", "json")) == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// listenToInterrupt waits for SIGINT or SIGTERM and then sends an error to the error channel.
func listenToInterrupt(errChannel chan<- error) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	errChannel <- fmt.Errorf("%s", <-c)
}
