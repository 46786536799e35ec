package service

import (
	"time"

	"github.com/turtacn/cakeys/pkg/constants"
)

// Metrics defines the interface for collecting key backend metrics.
// This abstraction keeps the backends independent of the monitoring implementation (e.g., Prometheus).
// Metrics 定义了收集密钥后端指标的接口。
type Metrics interface {
	// RecordKeyOperation records the outcome and latency of one backend call.
	// RecordKeyOperation 记录一次后端调用的结果和延迟。
	RecordKeyOperation(backend, operation string, duration time.Duration, err error)

	// RecordKeyCreated records a generated or imported private key.
	// RecordKeyCreated 记录生成或导入的私钥。
	RecordKeyCreated(backend string, keyType constants.KeyType)

	// RecordUsabilityProbe records the boolean result of an is-usable probe.
	// RecordUsabilityProbe 记录可用性探测的结果。
	RecordUsabilityProbe(backend string, usable bool)
}
