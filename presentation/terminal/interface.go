package terminal

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"webagent/application/agent"
	"webagent/application/tools"
	"webagent/domain/entities"
	"webagent/domain/interfaces"
	"webagent/infrastructure/ai"
	"webagent/infrastructure/browser"
	"webagent/infrastructure/security"
	"webagent/infrastructure/storage"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const defaultSystemPrompt = `You are an autonomous web-browsing agent. Each turn you receive the current page state: a numbered list of interactive elements and a screenshot where every element carries the same number. Decide on exactly one tool call per turn. Click elements by their number to make progress on the user's task. Use the wait tool only when the page is still loading. When you have gathered everything needed to answer the user's original query, call answer_user_query with the answer.`

type TerminalInterface struct {
	agent       *agent.Agent
	browserCtrl interfaces.Browser
	logger      *logrus.Logger
	reader      *bufio.Reader
	startURL    string
}

func NewTerminalInterface() (*TerminalInterface, error) {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		// .env file is optional
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	// Setup logger
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Initialize browser controller
	browserCtrl, err := browser.NewBrowserController(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}

	// Build the tool table, restricted to the configured allow list
	registry := tools.NewRegistry(logger).Allowed(allowedTools())

	// Initialize AI service
	aiService, err := ai.NewOpenAIClient(logger, registry.Schemas(), loadSystemPrompt(logger))
	if err != nil {
		browserCtrl.Close()
		return nil, fmt.Errorf("failed to initialize AI service: %w", err)
	}

	// Initialize security layer and run storage
	securityLayer := security.NewSecurityLayer(logger)
	runStore := storage.NewRunStore()

	reader := bufio.NewReader(os.Stdin)

	cfg := agent.DefaultConfig()
	cfg.MaxIterations = envInt("MAX_ITERATIONS", cfg.MaxIterations)
	cfg.ColorMode = colorMode()
	cfg.ConfirmFunc = func(prompt string) bool {
		fmt.Printf("%s [y/N] ", prompt)
		answer, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}

	// Initialize agent
	ag := agent.NewAgent(aiService, browserCtrl, securityLayer, runStore, registry, logger, cfg)

	return &TerminalInterface{
		agent:       ag,
		browserCtrl: browserCtrl,
		logger:      logger,
		reader:      reader,
		startURL:    os.Getenv("START_URL"),
	}, nil
}

func (t *TerminalInterface) Run() error {
	defer t.browserCtrl.Close()

	fmt.Println("Web Agent")
	fmt.Println("=========")
	fmt.Println("Enter a task for the agent, 'open <url>' to navigate, or 'quit' to exit")
	fmt.Println()

	ctx := context.Background()

	if t.startURL != "" {
		fmt.Printf("Opening %s\n", t.startURL)
		if err := t.browserCtrl.Navigate(ctx, t.startURL); err != nil {
			t.logger.WithError(err).Warn("failed to open start URL")
		}
	}

	for {
		fmt.Print("> ")
		input, err := t.reader.ReadString('\n')
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "quit" || input == "exit" || input == "q" {
			fmt.Println("Goodbye!")
			return nil
		}

		if url, ok := strings.CutPrefix(input, "open "); ok {
			url = strings.TrimSpace(url)
			if err := t.browserCtrl.Navigate(ctx, url); err != nil {
				fmt.Printf("Failed to open %s: %v\n", url, err)
			}
			continue
		}

		fmt.Printf("\nRunning task: %s\n\n", input)

		answer, err := t.agent.Run(ctx, input)
		if err != nil {
			fmt.Printf("\nTask failed: %v\n\n", err)
			continue
		}

		fmt.Printf("\n%s\n\n", answer)
	}
}

func (t *TerminalInterface) Close() error {
	return t.browserCtrl.Close()
}

// loadSystemPrompt reads the prompt file, falling back to the built-in prompt.
func loadSystemPrompt(logger *logrus.Logger) string {
	path := os.Getenv("SYSTEM_PROMPT_PATH")
	if path == "" {
		path = "system_prompt.txt"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.WithField("path", path).Info("system prompt file not found, using built-in prompt")
		return defaultSystemPrompt
	}
	return string(data)
}

// allowedTools parses the optional tool allow list from the environment.
func allowedTools() []string {
	raw := os.Getenv("ALLOWED_TOOLS")
	if raw == "" {
		return nil
	}
	var names []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func colorMode() entities.ColorMode {
	if strings.EqualFold(os.Getenv("MARKER_COLOR_MODE"), "random") {
		return entities.ColorRandom
	}
	return entities.ColorFixed
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
