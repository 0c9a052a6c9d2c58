package model

// MQTT topic layout shared by nodes and gateway services.
const (
	TopicReportPrefix       = "sensor/report"       // sensor/report/<node>
	TopicPresentationPrefix = "sensor/presentation" // sensor/presentation/<node>
	TopicCommandPrefix      = "node/command"        // node/command/<node>
	TopicNetworkConfig      = "node/config"         // retained
)

func ReportTopic(nodeID string) string       { return TopicReportPrefix + "/" + nodeID }
func PresentationTopic(nodeID string) string { return TopicPresentationPrefix + "/" + nodeID }
func CommandTopic(nodeID string) string      { return TopicCommandPrefix + "/" + nodeID }
