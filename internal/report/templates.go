package report

const (
	sensorTemperature = "Temperatura"
	sensorVibration   = "Vibração"
)

const noDataText = "ℹ️ Nenhuma leitura disponível para gerar o relatório rápido."

type levelTemplate struct {
	header         string
	status         string
	analysis       string
	recommendation string
}

var levelTemplates = map[RiskLevel]levelTemplate{
	LevelNormal: {
		header:         "🔵 RELATÓRIO RÁPIDO – OPERAÇÃO NORMAL",
		status:         "Normal",
		analysis:       "Parâmetros operacionais dentro da normalidade.",
		recommendation: "Manter monitoramento padrão.",
	},
	LevelPreventive: {
		header:         "⚠️ RELATÓRIO RÁPIDO – PRÉ-ALERTA",
		status:         "Preventivo (antes do modo crítico)",
		analysis:       "Tendência de aumento de risco detectada.",
		recommendation: "Inspeção preventiva e monitoramento reforçado.",
	},
	LevelCritical: {
		header:         "🚨 RELATÓRIO RÁPIDO – ALERTA CRÍTICO",
		status:         "CRÍTICO",
		analysis:       "Deterioração acelerada e alta probabilidade de falha.",
		recommendation: "PARADA IMEDIATA para manutenção.",
	},
}

type sensorTemplate struct {
	analysis       string // takes the formatted current value
	recommendation string
}

var sensorTemplates = map[string]sensorTemplate{
	sensorTemperature: {
		analysis:       "Temperatura de operação em %s.",
		recommendation: "Verificar sistema de resfriamento e ventilação do motor.",
	},
	sensorVibration: {
		analysis:       "Vibração medida em %s.",
		recommendation: "Verificar alinhamento, fixação e lubrificação de rolamentos.",
	},
}
