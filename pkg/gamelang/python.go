package gamelang

import (
	"fmt"
	"strings"
)

// PythonBuilder targets Pygame compiled to WebAssembly by the external build
// service. Kept for existing games; JavaScript is the recommended option.
type PythonBuilder struct {
	info LanguageInfo
}

func NewPythonBuilder() *PythonBuilder {
	return &PythonBuilder{
		info: LanguageInfo{
			ID:           "python",
			Name:         "python",
			DisplayName:  "Python (Pygame)",
			Description:  "Pygame games compiled to WebAssembly. Longer build times but familiar for Python developers.",
			Status:       StatusLegacy,
			RequiredTier: TierFree,
			Features: []string{
				"Familiar Python syntax",
				"Pygame game library",
				"Compiled to WebAssembly",
			},
			Limitations: []string{
				"Longer build times (30-60 seconds)",
				"Larger bundle sizes",
				"Async main loop required for browser compatibility",
			},
			EstimatedBuildTime: "30-60 seconds",
			SupportedPlatforms: []string{"Web"},
		},
	}
}

func (b *PythonBuilder) Language() string { return "python" }

func (b *PythonBuilder) Info() LanguageInfo { return b.info }

func (b *PythonBuilder) CanBuildForTier(tier Tier) bool {
	return tier.Meets(b.info.RequiredTier)
}

// Validate checks for the pygame import and a main entry point. A missing
// asyncio import is only warned about; the build service reports the
// authoritative failure.
func (b *PythonBuilder) Validate(code string) Validation {
	var errs, warnings []string

	if !strings.Contains(code, "import pygame") {
		errs = append(errs, "missing pygame import")
	}
	if !strings.Contains(code, "def main") {
		errs = append(errs, "no main function found")
	}
	if !strings.Contains(code, "import asyncio") {
		warnings = append(warnings, "missing asyncio import; web builds need an async main loop")
	}

	return Validation{Valid: len(errs) == 0, Errors: errs, Warnings: warnings}
}

func (b *PythonBuilder) StarterCode(cfg GameConfig) string {
	hero := cfg.Story.HeroName
	if hero == "" {
		hero = "Player"
	}
	enemy := cfg.Story.EnemyName
	if enemy == "" {
		enemy = "Enemy"
	}
	return fmt.Sprintf(pyStarterTemplate, hero, enemy, hero)
}

const pyStarterTemplate = `import asyncio
import pygame
import random

pygame.init()

SCREEN_WIDTH = 800
SCREEN_HEIGHT = 600
FPS = 60

BLUE = (0, 217, 255)
RED = (255, 0, 85)
WHITE = (255, 255, 255)
DARK_BLUE = (15, 52, 96)
GRAY = (22, 33, 62)


class Player(pygame.sprite.Sprite):
    def __init__(self, x, y):
        super().__init__()
        self.image = pygame.Surface((40, 40))
        self.image.fill(BLUE)
        self.rect = self.image.get_rect(topleft=(x, y))
        self.velocity_y = 0
        self.speed = 5
        self.jump_power = -12
        self.is_jumping = False
        self.name = "%s"

    def update(self, keys):
        if keys[pygame.K_LEFT] or keys[pygame.K_a]:
            self.rect.x -= self.speed
        if keys[pygame.K_RIGHT] or keys[pygame.K_d]:
            self.rect.x += self.speed

        self.velocity_y += 0.5
        self.rect.y += self.velocity_y
        if self.rect.y >= SCREEN_HEIGHT - 90:
            self.rect.y = SCREEN_HEIGHT - 90
            self.velocity_y = 0
            self.is_jumping = False

        self.rect.x = max(0, min(SCREEN_WIDTH - self.rect.width, self.rect.x))

    def jump(self):
        if not self.is_jumping:
            self.velocity_y = self.jump_power
            self.is_jumping = True


class Enemy(pygame.sprite.Sprite):
    def __init__(self, x, y):
        super().__init__()
        self.image = pygame.Surface((40, 40))
        self.image.fill(RED)
        self.rect = self.image.get_rect(topleft=(x, y))
        self.speed = 3
        self.name = "%s"

    def update(self):
        self.rect.x -= self.speed


async def main():
    screen = pygame.display.set_mode((SCREEN_WIDTH, SCREEN_HEIGHT))
    pygame.display.set_caption("%s's Adventure")
    clock = pygame.time.Clock()
    font = pygame.font.Font(None, 28)

    player = Player(100, SCREEN_HEIGHT - 90)
    enemies = pygame.sprite.Group()
    score = 0
    lives = 3
    spawn_timer = 0
    running = True

    while running:
        for event in pygame.event.get():
            if event.type == pygame.QUIT:
                running = False
            if event.type == pygame.KEYDOWN and event.key in (pygame.K_SPACE, pygame.K_UP):
                player.jump()

        keys = pygame.key.get_pressed()
        player.update(keys)

        spawn_timer += 1
        if spawn_timer >= FPS * 2:
            enemies.add(Enemy(SCREEN_WIDTH, SCREEN_HEIGHT - 90))
            spawn_timer = 0

        for enemy in list(enemies):
            enemy.update()
            if enemy.rect.right < 0:
                enemies.remove(enemy)
                score += 10
            elif player.rect.colliderect(enemy.rect):
                enemies.remove(enemy)
                lives -= 1
                if lives <= 0:
                    running = False

        screen.fill(DARK_BLUE)
        pygame.draw.rect(screen, GRAY, (0, SCREEN_HEIGHT - 50, SCREEN_WIDTH, 50))
        screen.blit(player.image, player.rect)
        enemies.draw(screen)
        hud = font.render(f"Score: {score}  Lives: {lives}", True, WHITE)
        screen.blit(hud, (20, 20))

        pygame.display.flip()
        clock.tick(FPS)
        await asyncio.sleep(0)

    pygame.quit()


asyncio.run(main())
`
