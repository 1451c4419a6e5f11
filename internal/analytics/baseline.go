package analytics

import "time"

// Baseline dataset used when no live sample has ever succeeded. The device
// and page sections are static dashboard filler either way; the load values
// here are only served inside an explicit fallback snapshot.

func baselineServerLoad() []Measurement {
	return []Measurement{
		{ID: "cpu", Label: "CPU", Usage: 24.5, Change: 0, Capacity: "4 Kerne"},
		{ID: "memory", Label: "Arbeitsspeicher", Usage: 38.2, Change: 0, Capacity: "8.0 GB"},
		{ID: "disk", Label: "Festplatte", Usage: 52.7, Change: 0, Capacity: "160.0 GB"},
	}
}

func baselineDeviceBreakdown() []DeviceShare {
	return []DeviceShare{
		{Device: "Desktop", Share: 54},
		{Device: "Mobil", Share: 38},
		{Device: "Tablet", Share: 8},
	}
}

func baselineTopPages() []PageStat {
	return []PageStat{
		{Path: "/mitglieder", Views: 1840},
		{Path: "/mitglieder/proben", Views: 1260},
		{Path: "/mitglieder/dienstplan", Views: 870},
		{Path: "/mitglieder/benachrichtigungen", Views: 610},
	}
}

// FallbackSnapshot builds a snapshot entirely from baseline data, stamped
// with the reasons live collection was unavailable.
func FallbackSnapshot(attempts int, reasons []string) *Snapshot {
	if len(reasons) == 0 {
		reasons = []string{"resource collection unavailable"}
	}
	return &Snapshot{
		GeneratedAt:     time.Now(),
		ServerLoad:      baselineServerLoad(),
		DeviceBreakdown: baselineDeviceBreakdown(),
		TopPages:        baselineTopPages(),
		Metadata:        Metadata{Source: "fallback", Attempts: attempts},
		FallbackReasons: reasons,
	}
}
