package assistant

import "github.com/namansh70747/smart-factory-monitor/internal/analyzer"

const (
	greetingReply   = "Olá! Sou seu assistente virtual da Smart Factory. Posso fornecer relatórios de status, KPIs, alertas e histórico. Como posso ajudar?"
	fallbackReply   = "Desculpe, não entendi. Tente 'Relatório', 'Relatório Completo', 'Status da máquina', 'status DEV-100' ou pergunte sobre 'OEE', 'MTBF', etc."
	apologyReply    = "⚠️ Desculpe, não consegui consultar os dados da planta agora. Tente novamente em instantes."
	noReadingsReply = "Sem dados nos sensores ainda."

	unknownDeviceReply = "Não encontrei o dispositivo %s ou dados recentes."
)

var levelLabels = map[analyzer.AlertLevel]string{
	analyzer.AlertNormal:   "Normal",
	analyzer.AlertPreAlert: "Pré-alerta",
	analyzer.AlertCritical: "Crítico",
}

var greetingOptions = []string{"Relatório Rápido", "Relatório Completo", "Status das Máquinas", "Alertas Ativos"}
