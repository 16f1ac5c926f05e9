package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/nightreel/narrative-backend/internal/db"
	"github.com/nightreel/narrative-backend/internal/llm"
	"github.com/nightreel/narrative-backend/internal/logger"
	"github.com/nightreel/narrative-backend/internal/modules/narrative"
	"github.com/nightreel/narrative-backend/internal/modules/narrative/filmmaker"
	"github.com/nightreel/narrative-backend/internal/repos"
	"github.com/nightreel/narrative-backend/internal/utils"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode, os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	provider := utils.GetEnv("LLM_PROVIDER", "openai", log)
	model := utils.GetEnv("LLM_MODEL", "gpt-5.2", log)
	assignmentsPath := utils.GetEnv("LLM_ASSIGNMENTS_FILE", "", log)
	validatorsEnabled := utils.GetEnvAsBool("SCRIPT_VALIDATORS_ENABLED", false, log)
	endFramesEnabled := utils.GetEnvAsBool("END_FRAMES_ENABLED", false, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	outputRepo := repos.NewOutputRepo(thePG, log)
	sceneRepo := repos.NewSceneRepo(thePG, log)
	sceneReferenceRepo := repos.NewSceneReferenceRepo(thePG, log)
	sourceDocRepo := repos.NewSourceDocRepo(thePG, log)
	outlineProductRepo := repos.NewOutlineProductRepo(thePG, log)
	stageGateRepo := repos.NewStageGateRepo(thePG, log)
	costLogRepo := repos.NewCostLogRepo(thePG, log)

	// LLM
	backend, err := llm.NewOpenAIBackend(log)
	if err != nil {
		log.Fatal("LLM backend init failed", "error", err)
	}
	assignments, err := llm.NewAssignments(provider, model, assignmentsPath, log)
	if err != nil {
		log.Fatal("LLM assignments init failed", "error", err)
	}
	client, err := llm.NewClient(log, assignments, map[string]llm.Backend{provider: backend})
	if err != nil {
		log.Fatal("LLM client init failed", "error", err)
	}
	merger := llm.NewMerger(log, client)

	// Pipeline services
	architect := narrative.NewArchitect(log, client)
	writer := narrative.NewWriter(log, client)
	screenwriter := narrative.NewScreenwriter(log, client)
	scriptValidator := narrative.NewScriptValidator(log, client)
	costs := narrative.NewCostNotifier(log, costLogRepo)

	composer := filmmaker.NewComposer(log, client)
	choreographer := filmmaker.NewChoreographer(log, client)
	continuity := filmmaker.NewContinuityChecker(log, client)
	director := filmmaker.NewDirector(log, composer, choreographer, continuity, endFramesEnabled)

	outlineStage := narrative.NewOutlineStage(log, thePG, outputRepo, sourceDocRepo, outlineProductRepo, stageGateRepo, architect, costs)
	scriptStage := narrative.NewScriptStage(log, thePG, outputRepo, sceneRepo, sceneReferenceRepo, sourceDocRepo, outlineProductRepo, stageGateRepo,
		writer, screenwriter, scriptValidator, director, merger, costs, validatorsEnabled)

	// CLI: run one stage for one output
	if len(os.Args) < 3 {
		fmt.Println("usage: narrative-backend <outline|script|regenerate-script> <output-id>")
		os.Exit(2)
	}
	stage := os.Args[1]
	outputID, err := uuid.Parse(os.Args[2])
	if err != nil {
		log.Fatal("Invalid output id", "arg", os.Args[2], "error", err)
	}

	timeoutMin := utils.GetEnvAsInt("STAGE_TIMEOUT_MINUTES", 30, log)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutMin)*time.Minute)
	defer cancel()

	switch stage {
	case "outline":
		if _, err := outlineStage.Run(ctx, outputID); err != nil {
			log.Fatal("Outline stage failed", "output_id", outputID, "error", err)
		}
	case "script", "regenerate-script":
		res, err := scriptStage.Run(ctx, narrative.ScriptStageRequest{
			OutputID:   outputID,
			Regenerate: stage == "regenerate-script",
		})
		if err != nil {
			log.Fatal("Script stage failed", "output_id", outputID, "error", err)
		}
		log.Info("Script ready for review", "title", res.Title, "scenes", res.SceneCount, "attempts", res.Attempts)
	default:
		log.Fatal("Unknown stage", "stage", stage)
	}
}
