package world

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sagewright/colossi/pkg/provider/llm"
)

// Builder generates complete worlds through a chat model. Each level of the
// hierarchy (world, kingdoms, towns, characters) is a separate one-shot
// completion with a line-oriented output format that survives sloppy model
// output; anything that fails to parse degrades to built-in fallback content
// rather than aborting the build.
type Builder struct {
	provider    llm.Provider
	log         *slog.Logger
	temperature float64
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger used during generation.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.log = l
	}
}

// WithTemperature overrides the sampling temperature for generation calls.
func WithTemperature(t float64) BuilderOption {
	return func(b *Builder) {
		b.temperature = t
	}
}

// NewBuilder constructs a Builder on top of the given chat provider.
func NewBuilder(provider llm.Provider, opts ...BuilderOption) (*Builder, error) {
	if provider == nil {
		return nil, fmt.Errorf("world: builder requires a chat provider")
	}
	b := &Builder{
		provider:    provider,
		log:         slog.Default(),
		temperature: 0.7,
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

const builderSystemPrompt = `Create interesting fantasy worlds that players would love to play in.
Instructions:
- Only generate in plain text without formatting
- Use simple clear language without being flowery
- Stay below 3-5 sentences for each description`

// Build generates a full world around the given concept: the world itself,
// three kingdoms, then towns and characters. Towns are generated concurrently
// across kingdoms, and characters concurrently across towns.
func (b *Builder) Build(ctx context.Context, concept string) (*World, error) {
	w, err := b.generateWorld(ctx, concept)
	if err != nil {
		b.log.Warn("world generation failed, using fallback world", "error", err)
		return fallbackWorld(), nil
	}

	w.Kingdoms = b.generateKingdoms(ctx, w)

	g, gctx := errgroup.WithContext(ctx)
	for i := range w.Kingdoms {
		g.Go(func() error {
			kingdom := &w.Kingdoms[i]
			kingdom.Towns = b.generateTowns(gctx, w, kingdom)

			tg, tctx := errgroup.WithContext(gctx)
			for j := range kingdom.Towns {
				tg.Go(func() error {
					town := &kingdom.Towns[j]
					town.NPCs = b.generateNPCs(tctx, w, kingdom, town)
					return nil
				})
			}
			return tg.Wait()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("world: build: %w", err)
	}

	w.Start = w.StartMessage()
	return w, nil
}

func (b *Builder) complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := b.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		Temperature:  b.temperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func (b *Builder) generateWorld(ctx context.Context, concept string) (*World, error) {
	prompt := fmt.Sprintf(`Generate a creative description for a unique fantasy world with an
interesting concept around %s.

Output content in the form:
World Name: <WORLD NAME>
World Description: <WORLD DESCRIPTION>

World Name:`, concept)

	out, err := b.complete(ctx, builderSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate world: %w", err)
	}

	lines := strings.SplitN(out, "\n", 2)
	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[0]), "World Name:"))
	desc := ""
	if len(lines) > 1 {
		desc = strings.TrimSpace(strings.ReplaceAll(lines[1], "World Description:", ""))
	}
	if name == "" || desc == "" {
		return nil, fmt.Errorf("generate world: unparseable output %q", out)
	}
	b.log.Info("world generated", "name", name)
	return &World{Name: name, Description: desc}, nil
}

func (b *Builder) generateKingdoms(ctx context.Context, w *World) []Kingdom {
	system := `Generate exactly 3 kingdoms for this fantasy world.
Each kingdom must be unique with rich culture and history.
Format must be exactly:
Kingdom Name: [name]
Kingdom Description: [description]`

	prompt := fmt.Sprintf(`Create 3 unique kingdoms for %s.
Each kingdom should have a connection to the world's magic.

World Context: %s

Respond with exactly:
Kingdom Name: [First Kingdom Name]
Kingdom Description: [First Kingdom Description]

Kingdom Name: [Second Kingdom Name]
Kingdom Description: [Second Kingdom Description]

Kingdom Name: [Third Kingdom Name]
Kingdom Description: [Third Kingdom Description]`, w.Name, w.Description)

	out, err := b.complete(ctx, system, prompt)
	if err != nil {
		b.log.Warn("kingdom generation failed, using fallback", "world", w.Name, "error", err)
		return fallbackKingdoms(w)
	}

	sections := parseNamed(out, "Kingdom Name:", "Kingdom Description:")
	if len(sections) == 0 {
		b.log.Warn("no kingdoms parsed, using fallback", "world", w.Name)
		return fallbackKingdoms(w)
	}

	kingdoms := make([]Kingdom, 0, len(sections))
	for _, s := range sections {
		kingdoms = append(kingdoms, Kingdom{Name: s.name, Description: s.description})
		b.log.Debug("kingdom created", "name", s.name)
	}
	return kingdoms
}

func (b *Builder) generateTowns(ctx context.Context, w *World, k *Kingdom) []Town {
	system := `Generate exactly 3 unique towns for a kingdom.
Each town should have distinctive features and history.
Format must be exactly:
Town Name: [name]
Town Description: [description]`

	prompt := fmt.Sprintf(`Create 3 unique towns for the kingdom of %s in %s.
Each town should reflect the kingdom's character.

Kingdom Context: %s
World Context: %s

Respond with exactly:
Town Name: [First Town Name]
Town Description: [First Town Description]

Town Name: [Second Town Name]
Town Description: [Second Town Description]

Town Name: [Third Town Name]
Town Description: [Third Town Description]`, k.Name, w.Name, k.Description, w.Description)

	out, err := b.complete(ctx, system, prompt)
	if err != nil {
		b.log.Warn("town generation failed, using fallback", "kingdom", k.Name, "error", err)
		return fallbackTowns(k)
	}

	sections := parseNamed(out, "Town Name:", "Town Description:")
	if len(sections) == 0 {
		b.log.Warn("no towns parsed, using fallback", "kingdom", k.Name)
		return fallbackTowns(k)
	}

	towns := make([]Town, 0, len(sections))
	for _, s := range sections {
		towns = append(towns, Town{Name: s.name, Description: s.description})
		b.log.Debug("town created", "name", s.name, "kingdom", k.Name)
	}
	return towns
}

func (b *Builder) generateNPCs(ctx context.Context, w *World, k *Kingdom, t *Town) []NPC {
	system := `Generate exactly 3 unique NPCs for a town.
Each NPC should have a distinct personality, appearance, and role.
Format must be exactly:
Character Name: [name]
Character Description: [description]`

	prompt := fmt.Sprintf(`Create 3 unique characters for %s in %s.
Each character should reflect the town's character and the kingdom's culture.

Town Context: %s
Kingdom Context: %s
World Context: %s

Respond with exactly:
Character Name: [First Character Name]
Character Description: [First Character Description]

Character Name: [Second Character Name]
Character Description: [Second Character Description]

Character Name: [Third Character Name]
Character Description: [Third Character Description]`, t.Name, k.Name, t.Description, k.Description, w.Description)

	out, err := b.complete(ctx, system, prompt)
	if err != nil {
		b.log.Warn("character generation failed, using fallback", "town", t.Name, "error", err)
		return fallbackNPCs(t, k)
	}

	sections := parseNamed(out, "Character Name:", "Character Description:")
	if len(sections) == 0 {
		b.log.Warn("no characters parsed, using fallback", "town", t.Name)
		return fallbackNPCs(t, k)
	}

	npcs := make([]NPC, 0, len(sections))
	for _, s := range sections {
		npcs = append(npcs, NPC{Name: s.name, Description: s.description})
		b.log.Debug("character created", "name", s.name, "town", t.Name)
	}
	return npcs
}

// namedSection is one name/description pair parsed from model output.
type namedSection struct {
	name        string
	description string
}

// parseNamed extracts name/description pairs from line-oriented model output,
// pairing each name label with the next description label. Unlabelled noise
// between pairs is skipped.
func parseNamed(raw, nameLabel, descLabel string) []namedSection {
	var out []namedSection

	var current string
	for _, line := range strings.Split(raw, "\n") {
		if i := strings.Index(line, nameLabel); i >= 0 {
			current = strings.TrimSpace(line[i+len(nameLabel):])
		} else if i := strings.Index(line, descLabel); i >= 0 && current != "" {
			desc := strings.TrimSpace(line[i+len(descLabel):])
			if desc != "" {
				out = append(out, namedSection{name: current, description: desc})
			}
			current = ""
		}
	}
	return out
}

func fallbackKingdoms(w *World) []Kingdom {
	return []Kingdom{{
		Name:        "First Kingdom",
		Description: fmt.Sprintf("The primary kingdom of %s, where the largest Colossi roam. The citizens have mastered the art of living atop these massive beasts, creating a unique civilization that moves with their titanic hosts.", w.Name),
	}}
}

func fallbackTowns(k *Kingdom) []Town {
	return []Town{{
		Name:        "Central Haven",
		Description: fmt.Sprintf("The primary settlement of %s, nestled safely on the Colossus's back.", k.Name),
	}}
}

func fallbackNPCs(t *Town, k *Kingdom) []NPC {
	return []NPC{
		{
			Name:        "Town Elder",
			Description: fmt.Sprintf("A wise and respected leader of %s, who understands the deep connection between the town and its Colossus.", t.Name),
		},
		{
			Name:        "Merchant",
			Description: fmt.Sprintf("A charismatic trader who brings goods from across %s, always ready with the latest news and gossip.", k.Name),
		},
		{
			Name:        "Guard Captain",
			Description: fmt.Sprintf("A vigilant protector of %s, skilled in both combat and maintaining order in a city that moves with its Colossus.", t.Name),
		},
	}
}

// fallbackWorld is the last resort when even the root world call fails.
func fallbackWorld() *World {
	w := &World{
		Name:        "Kyropeia",
		Description: "A realm where massive Colossi roam, carrying entire cities on their backs.",
		Kingdoms: []Kingdom{{
			Name:        "Luminaria",
			Description: "A kingdom built upon the largest Colossus, where magic and technology blend.",
			Towns: []Town{{
				Name:        "First Town",
				Description: "A bustling settlement on the Colossus's back.",
				NPCs: []NPC{{
					Name:        "Guide",
					Description: "A knowledgeable local who helps newcomers navigate the city.",
				}},
			}},
		}},
	}
	w.Start = w.StartMessage()
	return w
}
