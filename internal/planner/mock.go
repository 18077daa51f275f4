package planner

import (
	"fmt"

	"github.com/hyperengineering/vision/internal/types"
)

var mockQuarters = types.Quarters{
	Q1: []string{"Fundação e Pesquisa", "MVP", "Primeiros Clientes"},
	Q2: []string{"Otimização", "Escala Inicial", "Contratação"},
	Q3: []string{"Expansão de Canais", "Novos Produtos", "Parcerias"},
	Q4: []string{"Consolidação", "Retenção", "Planejamento 2027"},
}

var monthNames = [types.MonthsPerPlan]string{
	"Jan", "Fev", "Mar", "Abr", "Mai", "Jun", "Jul", "Ago", "Set", "Out", "Nov", "Dez",
}

// mockPlan is the deterministic placeholder returned in degraded mode.
func mockPlan(goal string) *types.StrategicPlan {
	monthly := make([]string, types.MonthsPerPlan)
	for i := range monthly {
		focus := mockQuarters.At(i / 3)
		monthly[i] = fmt.Sprintf("%s: %s", monthNames[i], focus[i%3])
	}

	weekly := make([]types.Tactic, types.WeeksPerPlan)
	for i := range weekly {
		weekly[i] = types.Tactic{
			Title:       fmt.Sprintf("Semana %d: Ação Tática da Semana", i+1),
			Description: "Descrição detalhada da ação tática para esta semana.",
		}
	}

	return &types.StrategicPlan{
		Goal:          goal,
		Quarters:      cloneQuarters(mockQuarters),
		MonthlyFocus:  monthly,
		WeeklyTactics: weekly,
	}
}
