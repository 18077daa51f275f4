package planner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperengineering/vision/internal/types"
)

const advisorPreamble = "Você é um consultor de negócios experiente e focado em execução. " +
	"Ajude o usuário a alcançar suas metas de 2026. Seja direto, prático e motivador."

const planShape = `{
  "goal": "A meta do usuário",
  "quarters": {
    "q1": ["Foco 1", "Foco 2", "Foco 3"],
    "q2": ["..."],
    "q3": ["..."],
    "q4": ["..."]
  },
  "monthlyFocus": ["Jan: ...", "Fev: ...", "... (12 itens)"],
  "weeklyTactics": [
    { "title": "Semana 1: ...", "description": "Como executar na prática..." },
    "... (exatamente 52 itens)"
  ]
}`

func writeContext(b *strings.Builder, heading string, c *types.OnboardingContext) {
	if c == nil {
		return
	}
	fields := []struct{ label, value string }{
		{"Modelo de Negócio", c.BusinessModel},
		{"Nicho", c.Niche},
		{"Estágio Atual", c.CurrentStage},
		{"Tamanho do Time", c.TeamSize},
		{"Faturamento Atual", c.MonthlyRevenue},
		{"Principais Gargalos", strings.Join(c.MainBottleneck, ", ")},
		{"Público Alvo", c.TargetAudience},
		{"Diferenciais", c.KeyStrengths},
		{"Canais de Marketing", c.MarketingChannels},
		{"Capacidade de Investimento", c.InvestmentCapacity},
		{"Disponibilidade de Tempo", c.TimeAvailability},
		{"Concorrentes", c.Competitors},
		{"Valores/Não-Negociáveis", c.Values},
	}
	b.WriteString(heading)
	b.WriteString(":\n")
	for _, f := range fields {
		fmt.Fprintf(b, "- %s: %s\n", f.label, f.value)
	}
	b.WriteString("\n")
}

func generatePreamble(c *types.OnboardingContext) string {
	var b strings.Builder
	b.WriteString("Você é um estrategista de negócios de elite.\n\n")
	writeContext(&b, "CONTEXTO DO USUÁRIO", c)
	b.WriteString("O usuário fornecerá uma meta para 2026.\n")
	b.WriteString("Você deve retornar um JSON ESTRITO com a seguinte estrutura:\n")
	b.WriteString(planShape)
	b.WriteString("\nOs 4 trimestres devem ter pelo menos um foco cada. ")
	b.WriteString("Não retorne nada além do JSON. Sem markdown, sem explicações.\n")
	return b.String()
}

func formatIndices(indices []int) string {
	if len(indices) == 0 {
		return "nenhuma"
	}
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ", ")
}

func recalculatePreamble(req RecalcRequest, goal string, completed []int) string {
	var b strings.Builder
	b.WriteString("Você é um estrategista de negócios de elite.\n\n")
	writeContext(&b, "CONTEXTO ORIGINAL DO USUÁRIO", req.Context)

	if delta := strings.TrimSpace(req.ContextDelta); delta != "" {
		b.WriteString("ATUALIZAÇÕES DE CONTEXTO (O QUE MUDOU):\n")
		b.WriteString(delta)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "O usuário tem uma meta para 2026: %q.\n", goal)
	if goal != req.Current.Goal {
		fmt.Fprintf(&b, "(Anteriormente era: %q)\n", req.Current.Goal)
	}

	b.WriteString("\nSITUAÇÃO ATUAL:\n")
	fmt.Fprintf(&b, "O usuário já completou %d semanas de execução.\n", len(completed))
	b.WriteString("Precisamos RECALCULAR a rota para as semanas restantes considerando o NOVO CONTEXTO e/ou NOVA META.\n\n")
	if len(completed) > 0 {
		b.WriteString("SEMANAS CONCLUÍDAS:\n")
		for _, idx := range completed {
			t := req.Current.WeeklyTactics[idx]
			fmt.Fprintf(&b, "- Semana %d: %s\n", idx+1, t.Title)
		}
		b.WriteString("\n")
	}
	b.WriteString("Retorne um JSON ESTRITO com a estrutura completa do plano atualizado:\n")
	b.WriteString(planShape)
	b.WriteString("\n\nIMPORTANTE:\n")
	fmt.Fprintf(&b, "1. As semanas já concluídas (índices %s, base zero) devem ser mantidas ou apenas levemente ajustadas para consistência.\n", formatIndices(completed))
	b.WriteString("2. Todas as outras semanas (futuras) devem ser otimizadas para a nova meta/contexto.\n")
	b.WriteString("3. Mantenha exatamente 52 itens em weeklyTactics, na mesma ordem de semanas.\n")
	b.WriteString("4. Não retorne nada além do JSON.\n")
	return b.String()
}
