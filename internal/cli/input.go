// Package cli handles cmd line input and suggestions for DBG and testing various features
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/sneap/snipserve/internal/utils"
	"github.com/sneap/snipserve/pkg/server"
	"github.com/sneap/snipserve/pkg/snippet"
)

// InputHandler processes user queries from stdin, printing matching
// snippets. It accepts flags to control behavior such as minimum and
// maximum query length, result limits, language scoping, and filtering.
type InputHandler struct {
	engine         *server.Engine
	language       string
	minQueryLength int
	maxQueryLength int
	resultLimit    int
	requestCount   int
	noFilter       bool
}

// NewInputHandler handles initialization of the InputHandler with basic parameters
func NewInputHandler(engine *server.Engine, language string, minLength, maxLength, limit int, noFilter bool) *InputHandler {
	return &InputHandler{
		engine:         engine,
		language:       language,
		minQueryLength: minLength,
		maxQueryLength: maxLength,
		resultLimit:    limit,
		noFilter:       noFilter,
	}
}

// Start begins the interface loop.
// It continuously prompts for input, reads a line from stdin,
// and passes the trimmed query to handleInput() for processing.
// Loop terminates if an error occurs while reading from stdin
func (h *InputHandler) Start() error {
	log.Print("SnipServe CLI")
	reader := bufio.NewReader(os.Stdin)
	log.Print("type a trigger and press Enter to see matching snippets (Ctrl+C to exit):")

	for {
		log.Print("> ")
		query, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		query = strings.TrimSpace(query)
		if query == "" {
			continue
		}
		h.handleInput(query)
	}
}

// handleInput processes a single query. It validates length and content,
// then routes to the trie or the full-text path the same way the IPC
// server does, falling back to fuzzy matching when nothing hits.
func (h *InputHandler) handleInput(query string) {
	h.requestCount++

	if len(query) < h.minQueryLength {
		log.Errorf("Query too short: %s", query)
		return
	}
	if len(query) > h.maxQueryLength {
		log.Errorf("Query too long: %s", query)
		return
	}

	// input filtering by default (unless --no-filter flag is used)
	if !h.noFilter {
		if !utils.IsValidQuery(query) {
			log.Infof("No results found for query: '%s'", query)
			return
		}
	} else {
		log.Debug("Input filtering disabled - raw queries accepted")
	}

	log.Debug("Processing request for", "query", query)

	var (
		results []snippet.Snippet
		meta    server.Meta
		err     error
	)
	if utf8.RuneCountInString(query) > 3 {
		results, meta, err = h.engine.FullTextSearch(context.Background(), query, h.language, h.resultLimit)
	} else {
		results, meta, err = h.engine.PrefixSearch(query, h.language, h.resultLimit, false)
	}
	if err != nil {
		log.Errorf("Search failed for '%s': %v", query, err)
		return
	}

	if len(results) == 0 {
		results, meta, err = h.engine.PrefixSearch(query, h.language, h.resultLimit, true)
		if err != nil {
			log.Errorf("Fuzzy search failed for '%s': %v", query, err)
			return
		}
		if len(results) > 0 {
			log.Debugf("No exact matches, showing fuzzy results for '%s'", query)
		}
	}

	log.Debugf("Took [ %dms ] for query '%s' via %s", meta.SearchTimeMs, query, meta.Method)

	if len(results) == 0 {
		log.Warnf("No snippets found for query: '%s'", query)
		return
	}

	log.Printf("Found %d snippets for query '%s':", len(results), query)
	for i, s := range results {
		clTrigger := fmt.Sprintf("\033[38;5;75m%s\033[0m", s.Prefix)
		scope := "any"
		if len(s.Scope) > 0 {
			scope = strings.Join(s.Scope, ",")
		}
		log.Printf("%2d. %-30s %-28s (used: %4d, scope: %s)", i+1, clTrigger, s.Name, s.UsageCount, scope)
	}
}
