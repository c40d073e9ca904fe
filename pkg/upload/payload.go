package upload

import (
	"bytes"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/rung/go-safecast"
	"go.uber.org/zap"

	"github.com/xping-dev/sdk-go/pkg/datamodel"
)

// wireBatch is the top-level upload document. Field names are stable; empty
// fields are omitted on the wire.
type wireBatch struct {
	ProjectID  string                    `json:"projectId"`
	Count      int32                     `json:"count"`
	Executions []datamodel.TestExecution `json:"executions"`
}

// Payload is one encoded batch ready for delivery.
type Payload struct {
	Body       []byte
	Compressed bool
	Count      int
}

// BuildPayload serializes a batch. Records that fail validation are dropped
// and logged, the rest of the batch proceeds: telemetry must never break the
// caller's test run over one malformed record.
func BuildPayload(projectID string, batch datamodel.Batch, compress bool, log *zap.SugaredLogger) (*Payload, error) {
	executions := make([]datamodel.TestExecution, 0, len(batch))
	for i := range batch {
		if err := batch[i].Validate(); err != nil {
			log.Warnw("Dropping malformed execution record", "executionId", batch[i].ExecutionID, "error", err)
			recordsDropped.Inc()
			continue
		}
		executions = append(executions, batch[i])
	}

	count, err := safecast.Int32(len(executions))
	if err != nil {
		return nil, err
	}

	doc := wireBatch{
		ProjectID:  projectID,
		Count:      count,
		Executions: executions,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	if !compress {
		return &Payload{Body: body, Count: len(executions)}, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err = zw.Write(body); err != nil {
		return nil, err
	}
	if err = zw.Close(); err != nil {
		return nil, err
	}
	return &Payload{Body: buf.Bytes(), Compressed: true, Count: len(executions)}, nil
}
