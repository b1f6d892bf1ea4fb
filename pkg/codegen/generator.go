package codegen

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gameforge/backend/pkg/gamelang"
	"github.com/gameforge/backend/pkg/games"
)

// Completer produces game source from prompts. *Client satisfies it; tests
// substitute fakes.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Generator runs asynchronous code generation: the game is flipped to
// "generating" immediately and the completion runs in the background,
// landing either generated source plus "draft" or "error" with a message.
type Generator struct {
	games     games.Store
	registry  *gamelang.Registry
	completer Completer
	timeout   time.Duration
}

func NewGenerator(g games.Store, reg *gamelang.Registry, completer Completer) *Generator {
	return &Generator{games: g, registry: reg, completer: completer, timeout: 5 * time.Minute}
}

// Start flips the game to generating and launches the background completion.
// The returned error only covers the synchronous part; generation outcomes
// are observed through the game's status.
func (g *Generator) Start(ctx context.Context, userID, gameID, prompt string) error {
	game, err := g.games.GetOwned(ctx, gameID, userID)
	if err != nil {
		return err
	}
	builder, ok := g.registry.Get(game.Language)
	if !ok {
		return fmt.Errorf("language %q is not supported", game.Language)
	}

	flipped, err := g.games.SetStatusIf(ctx, game.ID,
		[]games.Status{games.StatusDraft, games.StatusFailed, games.StatusError},
		games.StatusGenerating)
	if err != nil {
		return err
	}
	if !flipped {
		return fmt.Errorf("game is busy (status %s)", game.Status)
	}

	go g.generate(game, builder, prompt)
	return nil
}

func (g *Generator) generate(game games.Game, builder gamelang.CodeBuilder, prompt string) {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	code, err := g.completer.Complete(ctx, systemPrompt(game.Language), userPrompt(game, prompt))
	if err != nil {
		log.Printf("generation for game %s failed: %v", game.ID, err)
		if serr := g.games.SetStatus(ctx, game.ID, games.StatusError); serr != nil {
			log.Printf("mark game %s errored: %v", game.ID, serr)
		}
		return
	}

	if v := builder.Validate(code); !v.Valid {
		// The lint is heuristic; log and keep the code so the user can
		// inspect it, but leave the game in error.
		log.Printf("generated code for game %s failed validation: %v", game.ID, v.Errors)
		if serr := g.games.SetCode(ctx, game.ID, code, games.StatusError); serr != nil {
			log.Printf("store invalid code for game %s: %v", game.ID, serr)
		}
		return
	}

	if err := g.games.SetCode(ctx, game.ID, code, games.StatusDraft); err != nil {
		log.Printf("store generated code for game %s: %v", game.ID, err)
	}
}

func systemPrompt(language string) string {
	if language == "python" {
		return "You are an expert Python game developer specializing in Pygame. " +
			"Generate complete, working Pygame code that compiles to WebAssembly. " +
			"Return only the Python source with an async main loop."
	}
	return "You are an expert game developer specializing in HTML5 Canvas and JavaScript. " +
		"Generate complete, working game code that runs in the browser. " +
		"Return only a single HTML file with embedded JavaScript and CSS."
}

func userPrompt(game games.Game, prompt string) string {
	hero := game.Config.Story.HeroName
	if hero == "" {
		hero = "Player"
	}
	enemy := game.Config.Story.EnemyName
	if enemy == "" {
		enemy = "Enemy"
	}
	return fmt.Sprintf("Game: %s\nHero: %s\nEnemy: %s\nDescription: %s", game.Title, hero, enemy, prompt)
}
