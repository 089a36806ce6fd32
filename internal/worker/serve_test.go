package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClusterLabs/pcs-sub012/internal/codec"
	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

func TestServeRunsCommandsInOrder(t *testing.T) {
	c := codec.MustCBOR()

	var in bytes.Buffer
	enc := c.NewEncoder(&in)
	require.NoError(t, enc.Encode(types.WorkerCommand{TaskIdent: "t1", Command: types.NewCommandEnvelope("echo", map[string]any{"x": 1})}))
	require.NoError(t, enc.Encode(types.WorkerCommand{TaskIdent: "t2", Command: types.NewCommandEnvelope("boom", nil)}))

	var out bytes.Buffer
	err := Serve(context.Background(), &in, &out, ServeConfig{
		Registry:     testRegistry(t),
		Codec:        c,
		PID:          99,
		RelayTimeout: 10 * time.Millisecond,
		OutboxSize:   4,
	})
	require.NoError(t, err)

	dec := c.NewDecoder(&out)
	var msgs []types.Message
	for {
		var m types.Message
		if err := dec.Decode(&m); err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
		msgs = append(msgs, m)
	}

	require.Len(t, msgs, 4)
	assert.Equal(t, "t1", msgs[0].TaskIdent)
	assert.Equal(t, types.MessageExecuted, msgs[0].Kind)
	assert.Equal(t, types.FinishSuccess, msgs[1].FinishType)
	assert.Equal(t, map[string]any{"x": int64(1)}, msgs[1].Result)
	assert.Equal(t, "t2", msgs[2].TaskIdent)
	assert.Equal(t, types.FinishUnhandledException, msgs[3].FinishType)
}

func TestServeRejectsGarbage(t *testing.T) {
	err := Serve(context.Background(), bytes.NewReader([]byte{0xff, 0x00, 0x13}), io.Discard, ServeConfig{
		Registry: testRegistry(t),
		Codec:    codec.MustCBOR(),
	})
	assert.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestServeReportsWriteFailure(t *testing.T) {
	c := codec.MustCBOR()
	var in bytes.Buffer
	require.NoError(t, c.NewEncoder(&in).Encode(types.WorkerCommand{TaskIdent: "t1", Command: types.NewCommandEnvelope("echo", nil)}))

	err := Serve(context.Background(), &in, failingWriter{}, ServeConfig{
		Registry:   testRegistry(t),
		Codec:      c,
		OutboxSize: 1,
	})
	assert.ErrorContains(t, err, "broken pipe")
}
