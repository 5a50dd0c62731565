package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/trackmate/trackmate/pkg/elastic_client"
	"github.com/trackmate/trackmate/pkg/tmdf"
)

type rejectedSampleAudit struct {
	DriverID string              `json:"driverId"`
	Reason   string              `json:"reason"`
	Sample   tmdf.PositionSample `json:"sample"`

	Timestamp time.Time `json:"timestamp"`
}

type sosAudit struct {
	DriverID string        `json:"driverId"`
	Alert    tmdf.SOSAlert `json:"alert"`
}

func auditIndexName(kind string) string {
	yearNumber, weekNumber := time.Now().ISOWeek()
	return fmt.Sprintf("trackmate-%s-%d-%d", kind, yearNumber, weekNumber)
}

// Audit records are indexed when elasticsearch is configured and dropped
// silently otherwise
func auditRejectedSample(driverID string, reason error, sample tmdf.PositionSample) {
	record, err := json.Marshal(rejectedSampleAudit{
		DriverID:  driverID,
		Reason:    reason.Error(),
		Sample:    sample,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}

	elastic_client.IndexRequest(auditIndexName("rejected-samples"), bytes.NewReader(record))
}

func auditSOS(driverID string, alert tmdf.SOSAlert) {
	record, err := json.Marshal(sosAudit{
		DriverID: driverID,
		Alert:    alert,
	})
	if err != nil {
		return
	}

	elastic_client.IndexRequest(auditIndexName("sos-alerts"), bytes.NewReader(record))
}
