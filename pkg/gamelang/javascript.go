package gamelang

import (
	"fmt"
	"strings"
)

// JavaScriptBuilder targets vanilla JavaScript with an HTML5 canvas. The
// output is a single self-contained HTML file, so builds amount to bundling.
type JavaScriptBuilder struct {
	info LanguageInfo
}

func NewJavaScriptBuilder() *JavaScriptBuilder {
	return &JavaScriptBuilder{
		info: LanguageInfo{
			ID:           "javascript",
			Name:         "javascript",
			DisplayName:  "JavaScript (HTML5)",
			Description:  "Vanilla JavaScript with HTML5 Canvas. Fast builds, runs everywhere.",
			Status:       StatusStable,
			RequiredTier: TierFree,
			Features: []string{
				"Instant builds (no compilation)",
				"Runs in any modern browser",
				"Easy to debug and iterate",
				"Responsive and mobile-friendly",
			},
			Limitations: []string{
				"Limited to browser capabilities",
				"No native mobile builds",
			},
			EstimatedBuildTime: "< 5 seconds",
			SupportedPlatforms: []string{"Web", "Mobile Web"},
		},
	}
}

func (b *JavaScriptBuilder) Language() string { return "javascript" }

func (b *JavaScriptBuilder) Info() LanguageInfo { return b.info }

func (b *JavaScriptBuilder) CanBuildForTier(tier Tier) bool {
	return tier.Meets(b.info.RequiredTier)
}

// Validate runs structural checks on a generated HTML/JS game. It requires a
// document skeleton, a script body, and a recognizable animation loop.
func (b *JavaScriptBuilder) Validate(code string) Validation {
	var errs []string

	if !strings.Contains(code, "<!DOCTYPE html>") && !strings.Contains(code, "<html") {
		errs = append(errs, "missing HTML document structure")
	}
	if !strings.Contains(code, "requestAnimationFrame") && !strings.Contains(code, "setInterval") {
		errs = append(errs, "no game loop found")
	}
	if !strings.Contains(code, "<script") {
		errs = append(errs, "no JavaScript code found")
	}

	return Validation{Valid: len(errs) == 0, Errors: errs}
}

// StarterCode renders a complete playable platformer with the configured
// character names. Pure template substitution; no AI involved.
func (b *JavaScriptBuilder) StarterCode(cfg GameConfig) string {
	hero := cfg.Story.HeroName
	if hero == "" {
		hero = "Player"
	}
	enemy := cfg.Story.EnemyName
	if enemy == "" {
		enemy = "Enemy"
	}
	return fmt.Sprintf(jsStarterTemplate, hero, hero, enemy)
}

const jsStarterTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s's Adventure</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            background: #1a1a2e;
            font-family: 'Arial', sans-serif;
            color: white;
        }
        #gameCanvas {
            border: 2px solid #16213e;
            background: #0f3460;
        }
        #gameInfo {
            position: absolute;
            top: 20px;
            left: 20px;
            font-size: 18px;
        }
    </style>
</head>
<body>
    <canvas id="gameCanvas" width="800" height="600"></canvas>
    <div id="gameInfo">
        <div>Score: <span id="score">0</span></div>
        <div>Lives: <span id="lives">3</span></div>
    </div>

    <script>
        const canvas = document.getElementById('gameCanvas');
        const ctx = canvas.getContext('2d');

        const game = {
            score: 0,
            lives: 3,
            running: true,
            player: {
                x: 100, y: canvas.height - 100,
                width: 40, height: 40,
                velocityY: 0, speed: 5, jumpPower: -12,
                isJumping: false, color: '#00d9ff',
                name: '%s'
            },
            enemies: [],
            keys: {},
            gravity: 0.5
        };

        document.addEventListener('keydown', (e) => {
            game.keys[e.key] = true;
            if ((e.key === ' ' || e.key === 'ArrowUp') && !game.player.isJumping) {
                game.player.velocityY = game.player.jumpPower;
                game.player.isJumping = true;
            }
        });
        document.addEventListener('keyup', (e) => { game.keys[e.key] = false; });

        function spawnEnemy() {
            game.enemies.push({
                x: canvas.width, y: canvas.height - 100,
                width: 40, height: 40, speed: 3,
                color: '#ff0055', name: '%s'
            });
        }
        spawnEnemy();
        setInterval(spawnEnemy, 2000);

        function collides(a, b) {
            return a.x < b.x + b.width && a.x + a.width > b.x &&
                   a.y < b.y + b.height && a.y + a.height > b.y;
        }

        function update() {
            if (!game.running) return;
            if (game.keys['ArrowLeft'] || game.keys['a']) game.player.x -= game.player.speed;
            if (game.keys['ArrowRight'] || game.keys['d']) game.player.x += game.player.speed;

            game.player.velocityY += game.gravity;
            game.player.y += game.player.velocityY;
            if (game.player.y >= canvas.height - game.player.height - 50) {
                game.player.y = canvas.height - game.player.height - 50;
                game.player.velocityY = 0;
                game.player.isJumping = false;
            }
            game.player.x = Math.max(0, Math.min(canvas.width - game.player.width, game.player.x));

            for (let i = game.enemies.length - 1; i >= 0; i--) {
                const enemy = game.enemies[i];
                enemy.x -= enemy.speed;
                if (enemy.x + enemy.width < 0) {
                    game.enemies.splice(i, 1);
                    game.score += 10;
                    updateUI();
                    continue;
                }
                if (collides(game.player, enemy)) {
                    game.lives--;
                    updateUI();
                    game.enemies.splice(i, 1);
                    if (game.lives <= 0) {
                        game.running = false;
                        alert('Game Over! Final Score: ' + game.score);
                        location.reload();
                    }
                }
            }
        }

        function render() {
            ctx.fillStyle = '#0f3460';
            ctx.fillRect(0, 0, canvas.width, canvas.height);
            ctx.fillStyle = '#16213e';
            ctx.fillRect(0, canvas.height - 50, canvas.width, 50);

            ctx.fillStyle = game.player.color;
            ctx.fillRect(game.player.x, game.player.y, game.player.width, game.player.height);
            ctx.fillStyle = 'white';
            ctx.font = '12px Arial';
            ctx.textAlign = 'center';
            ctx.fillText(game.player.name, game.player.x + game.player.width / 2, game.player.y - 5);

            game.enemies.forEach(enemy => {
                ctx.fillStyle = enemy.color;
                ctx.fillRect(enemy.x, enemy.y, enemy.width, enemy.height);
                ctx.fillStyle = 'white';
                ctx.fillText(enemy.name, enemy.x + enemy.width / 2, enemy.y - 5);
            });
        }

        function updateUI() {
            document.getElementById('score').textContent = game.score;
            document.getElementById('lives').textContent = game.lives;
        }

        function gameLoop() {
            update();
            render();
            requestAnimationFrame(gameLoop);
        }
        gameLoop();
    </script>
</body>
</html>
`
