// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package receiver

import (
	"github.com/zjpjohn/reactor-kafka/kafka"
)

// ConsumerMessage is a single delivered record plus whatever
// acknowledgement state its ack mode attaches. Offset is always
// populated; Handle is non-nil only in ManualAckMode and
// ManualCommitMode, where the application is responsible for driving
// the commit itself.
//
// ConsumerMessage never references the OffsetManager directly — only
// its Handle does — so copying or discarding a ConsumerMessage can
// never keep the manager's internal state alive longer than it
// should.
type ConsumerMessage struct {
	kafka.Record

	Handle *OffsetHandle
}
