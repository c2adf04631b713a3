package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"gridpilot/agent"
	"gridpilot/config"
	"gridpilot/contextpack"
	"gridpilot/model"
	"gridpilot/provider"
	"gridpilot/safety"
	"gridpilot/sheet"
	"gridpilot/storage"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	config.InitDebugLog(cfg.DataDir())

	prov, providerID, err := buildProvider(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize provider %q: %v\n", cfg.DefaultProvider, err)
		os.Exit(1)
	}

	sessionStorage, err := storage.NewSessionStorage(cfg.DataDir())
	if err != nil {
		fmt.Printf("Failed to initialize session storage: %v\n", err)
		os.Exit(1)
	}

	var turnLog *storage.TurnLog
	if cfg.LoggingEnabled {
		turnLog, err = storage.NewTurnLog(cfg.DataDir())
		if err != nil {
			fmt.Printf("Failed to open turn log: %v\n", err)
			os.Exit(1)
		}
		defer turnLog.Close()
	}

	session := resumeOrCreateSession(sessionStorage, providerID, prov.GetModel())
	if err := sessionStorage.LockSession(session.ID); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("Warning: failed to lock session: %v", err)
	}
	defer func() {
		if err := sessionStorage.UnlockSession(session.ID); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("Warning: failed to unlock session: %v", err)
		}
	}()

	wb := sheet.NewWorkbook("Sheet1")

	opts := agent.Options{
		Driver:   wb,
		Provider: prov,
		Budget:   contextpack.NewManager(wb, prov, cfg.MaxTokenBudget),
		Gate:     agent.GateFunc(consoleGate),
		Settings: safety.Settings{
			ApprovalMode:       cfg.ApprovalMode,
			RiskyCellThreshold: cfg.RiskyCellThreshold,
			WebSearchEnabled:   cfg.WebSearchEnabled,
		},
		SystemPrompt:   cfg.SystemPrompt,
		SearchEndpoint: cfg.SearchEndpoint,
		IterationLimit: cfg.IterationLimit,
		SessionID:      session.ID,
		ProviderID:     providerID,
		OnDelta: func(chunk string) {
			fmt.Print(chunk)
		},
	}
	if turnLog != nil {
		opts.Sink = turnLog
	}
	orch := agent.New(opts)

	if len(session.Messages) > 0 {
		var memory *contextpack.MemoryState
		if session.MemorySummary != "" {
			memory = &contextpack.MemoryState{
				Summary:   session.MemorySummary,
				SourceIDs: session.MemorySourceIDs,
			}
		}
		orch.Restore(storage.ToModelMessages(session.Messages), memory)
	}

	fmt.Printf("gridpilot %s (%s, model %s)\n", Version, providerID, prov.GetModel())
	fmt.Println("Type a request, or /help for commands.")

	runREPL(orch, prov, session, sessionStorage, turnLog, cfg.DataDir())
}

func buildProvider(cfg *config.Config) (model.Provider, string, error) {
	id := cfg.DefaultProvider
	if id == "" {
		id = "ollama"
	}

	pcfg := provider.Config{
		Type:         provider.MapProviderIDToType(id),
		APIKey:       cfg.CredentialStore.Get(id),
		ProxyURL:     cfg.ProxyURL,
		ProxyEnabled: cfg.ProxyEnabled,
	}
	if entry, ok := cfg.ProviderByID(id); ok {
		pcfg.BaseURL = entry.BaseURL
		pcfg.Model = entry.Model
	}
	if id == "ollama" {
		if cfg.OllamaHost != "" {
			pcfg.BaseURL = cfg.OllamaHost
		}
		if cfg.DefaultModel != "" {
			pcfg.Model = cfg.DefaultModel
		}
	}

	p, err := provider.New(pcfg)
	if err != nil {
		return nil, "", err
	}
	return p, id, nil
}

func resumeOrCreateSession(ss *storage.SessionStorage, providerID, modelID string) *storage.Session {
	if lastID, err := ss.LoadCurrentSessionID(); err == nil {
		locked, lockErr := ss.CheckSessionLock(lastID)
		if lockErr == nil && !locked {
			if session, err := ss.Load(lastID); err == nil {
				return session
			}
		}
	}

	session := &storage.Session{
		Provider: providerID,
		Model:    modelID,
	}
	_ = ss.Save(session)
	_ = ss.SaveCurrentSessionID(session.ID)
	return session
}

// consoleGate prompts on stdin for risky calls.
func consoleGate(req agent.ApprovalRequest) bool {
	fmt.Printf("\nThe model wants to run %s", req.ToolName)
	if req.Reason != "" {
		fmt.Printf(" (%s)", req.Reason)
	}
	fmt.Println()
	if req.Risk != nil {
		fmt.Printf("  %s\n", req.Risk.Reason)
		if req.Risk.TotalCells > 0 {
			fmt.Printf("  target: %d cells, %d non-empty\n", req.Risk.TotalCells, req.Risk.OverwriteCells)
		}
	}
	fmt.Print("Allow? [y/N] ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func runREPL(orch *agent.Orchestrator, prov model.Provider, session *storage.Session, ss *storage.SessionStorage, turnLog *storage.TurnLog, dataDir string) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lastTurnID := ""

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit":
			return

		case line == "/help":
			fmt.Println("/revert        revert the last turn's changes")
			fmt.Println("/turns         show recent turns from the log")
			fmt.Println("/sessions      list saved sessions")
			fmt.Println("/search <q>    search messages across sessions")
			fmt.Println("/set p f v     update a provider setting (e.g. /set ollama model llama3.1)")
			fmt.Println("/models        list models available from the current provider")
			fmt.Println("/export        export this session to a JSON file")
			fmt.Println("/quit          exit")
			continue

		case line == "/revert":
			if lastTurnID == "" {
				fmt.Println("Nothing to revert yet.")
				continue
			}
			n, err := orch.Ledger().RevertTurn(lastTurnID)
			if err != nil {
				fmt.Printf("Revert failed: %v\n", err)
				continue
			}
			fmt.Printf("Reverted %d change(s).\n", n)
			continue

		case line == "/turns":
			if turnLog == nil {
				fmt.Println("Turn logging is disabled.")
				continue
			}
			turns, err := turnLog.ListTurns(session.ID, 10)
			if err != nil {
				fmt.Printf("Failed to read turn log: %v\n", err)
				continue
			}
			for _, t := range turns {
				fmt.Printf("%s  %s  %d tool call(s), %v\n",
					t.Timestamp.Format("15:04:05"), firstLine(t.Prompt), len(t.ToolCalls), t.EditedRanges)
			}
			continue

		case line == "/sessions":
			list, err := ss.List()
			if err != nil {
				fmt.Printf("Failed to list sessions: %v\n", err)
				continue
			}
			for _, meta := range list {
				fmt.Printf("%s  %s  (%d messages)\n", meta.ID, meta.Name, meta.MessageCount)
			}
			continue

		case line == "/models":
			if err := prov.Ping(context.Background()); err != nil {
				fmt.Printf("Provider unreachable: %v\n", err)
				continue
			}
			models, err := prov.ListModels(context.Background())
			if err != nil {
				fmt.Printf("Failed to list models: %v\n", err)
				continue
			}
			for _, m := range models {
				marker := " "
				if m.InternalName == prov.GetModel() {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, m.InternalName)
			}
			continue

		case strings.HasPrefix(line, "/set "):
			parts := strings.Fields(line)
			if len(parts) != 4 {
				fmt.Println("Usage: /set <provider> <field> <value>")
				continue
			}
			if err := config.UpdateProviderField(dataDir, parts[1], parts[2], parts[3]); err != nil {
				fmt.Printf("Update failed: %v\n", err)
				continue
			}
			fmt.Println("Saved. Takes effect on next start.")
			continue

		case strings.HasPrefix(line, "/search "):
			query := strings.TrimSpace(strings.TrimPrefix(line, "/search "))
			index := storage.NewSearchIndex(ss)
			matches, err := index.SearchAllSessions(query)
			if err != nil {
				fmt.Printf("Search failed: %v\n", err)
				continue
			}
			for _, m := range matches {
				fmt.Printf("[%s] %s: %s\n", m.SessionName, m.Role, m.Preview)
			}
			if len(matches) == 0 {
				fmt.Println("No matches.")
			}
			continue

		case line == "/export":
			path := storage.GenerateExportPath(session.Name)
			if err := ss.ExportToJSON(session.ID, path); err != nil {
				fmt.Printf("Export failed: %v\n", err)
				continue
			}
			fmt.Printf("Exported to %s\n", path)
			continue
		}

		result, err := orch.RunTurn(context.Background(), line)
		if err != nil {
			fmt.Printf("Turn failed: %v\n", err)
			continue
		}
		lastTurnID = result.TurnID

		// Streaming already printed deltas; make sure the final text is
		// on screen for non-streaming outcomes too.
		fmt.Printf("\n\n%s\n", strings.TrimSpace(result.FinalText))
		if len(result.Citations) > 0 {
			fmt.Printf("References: %s\n", strings.Join(result.Citations, ", "))
		}
		if len(result.EditedRanges) > 0 {
			fmt.Printf("Edited: %s  (/revert to undo)\n", strings.Join(result.EditedRanges, ", "))
		}

		if session.Name == "" {
			session.Name = storage.GenerateSessionName(line)
		}
		session.Messages = storage.FromModelMessages(orch.History())
		if mem := orch.Memory(); mem != nil {
			session.MemorySummary = mem.Summary
			session.MemorySourceIDs = mem.SourceIDs
		}
		if err := ss.Save(session); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("Warning: failed to save session: %v", err)
		}
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > 60 {
		s = s[:60] + "..."
	}
	return s
}
