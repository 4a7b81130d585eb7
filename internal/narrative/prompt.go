package narrative

import (
	"fmt"
	"sort"
	"strings"
)

const (
	briefingSystem = "You are a mission operations engineer for a CubeSat. " +
		"Summarize nightly telemetry anomaly detection runs in clear, concise language."

	actionsSystem = "You are a senior satellite operations engineer helping to create a nightly report. " +
		"Based on the mission briefing and run statistics, you will extract key findings and " +
		"recommend concrete checks or follow-up actions for the engineering team."

	explainSystem = "You are a satellite health monitoring expert. " +
		"Explain anomalies in CubeSat telemetry to engineers."

	answerSystem = "You are assisting with telemetry analysis for a CubeSat. " +
		"You will receive summary statistics of the latest run and a natural language question. " +
		"Answer based on that information."
)

func briefingPrompt(facts RunFacts) string {
	return fmt.Sprintf(
		"Here is the summary of the nightly run:\n%s\n\n"+
			"Write a mission briefing in bullet-point format. Use 4-7 bullets, each starting with '- '. "+
			"Include:\n"+
			"- How many packets were processed\n"+
			"- How many anomalies were found\n"+
			"- Which subsystems look problematic (power, thermal, attitude)\n"+
			"- Any trends that might deserve investigation\n"+
			"Be factual, not dramatic, and do not add extra headings.",
		formatFacts(facts))
}

func actionsPrompt(facts RunFacts, briefing string) string {
	return fmt.Sprintf(
		"Here is the summary of the nightly run:\n%s\n\n"+
			"Here is the mission briefing that was already generated:\n%s\n\n"+
			"Produce two sections in plain text:\n"+
			"1) 'Key Findings:' followed by 3-6 bullet points starting with '- '.\n"+
			"2) 'Recommended Checks / Actions:' followed by 3-6 bullet points starting with '- '.\n"+
			"Keep each bullet short and specific. Do not add any extra headings beyond those two.",
		formatFacts(facts), briefing)
}

func explainPrompt(packet PacketFacts, facts RunFacts) string {
	return fmt.Sprintf(
		"We have an anomalous telemetry packet with fields:\n%s\n\n"+
			"Normal baseline statistics for each field are:\n%s\n\n"+
			"This packet's anomaly score from an isolation forest model is %.3f "+
			"(where higher means more anomalous).\n"+
			"Explain in 3-5 bullet points why this packet might be anomalous and which subsystem(s) "+
			"could be affected. Use short, clear sentences.",
		formatPacket(packet), formatFieldStats(facts), packet.Score)
}

func answerPrompt(question, context string) string {
	return fmt.Sprintf(
		"Context summary of the latest telemetry run:\n%s\n\n"+
			"Question:\n%s\n\n"+
			"Answer concisely and, if needed, suggest what plots or filters could help investigate.",
		context, question)
}

func formatFacts(facts RunFacts) string {
	var b strings.Builder
	fmt.Fprintf(&b, "timestamp: %s\n", facts.Timestamp)
	fmt.Fprintf(&b, "total_packets: %d\n", facts.TotalPackets)
	fmt.Fprintf(&b, "anomaly_count: %d\n", facts.AnomalyCount)
	fmt.Fprintf(&b, "anomaly_rate_percent: %.2f\n", facts.AnomalyRatePercent)
	b.WriteString(formatFieldStats(facts))
	return b.String()
}

func formatFieldStats(facts RunFacts) string {
	names := make([]string, 0, len(facts.Fields))
	for name := range facts.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		s := facts.Fields[name]
		fmt.Fprintf(&b, "%s: mean=%.3f std=%.3f min=%.3f max=%.3f\n",
			name, s.Mean, s.Std, s.Min, s.Max)
	}
	return b.String()
}

func formatPacket(packet PacketFacts) string {
	names := make([]string, 0, len(packet.Fields))
	for name := range packet.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %.4f\n", name, packet.Fields[name])
	}
	return b.String()
}
