package planner

import "time"

// StatusMessages are shown in order, cycling, while a plan is being generated.
// They do not reflect real progress.
var StatusMessages = []string{
	"Analisando sua meta...",
	"Consultando estratégias de mercado...",
	"Desenhando estrutura trimestral...",
	"Definindo tarefas táticas...",
	"Otimizando recursos...",
	"Finalizando seu plano...",
}

// StatusInterval is how long each status message stays on screen.
const StatusInterval = 1500 * time.Millisecond

// StatusMessageAt returns the message to show after elapsed time.
func StatusMessageAt(elapsed time.Duration) string {
	if elapsed < 0 {
		elapsed = 0
	}
	i := int(elapsed/StatusInterval) % len(StatusMessages)
	return StatusMessages[i]
}
