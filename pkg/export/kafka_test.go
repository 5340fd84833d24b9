package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/pkg/layers"
	"firestige.xyz/strix/pkg/pdu"
)

func TestSummarize(t *testing.T) {
	eth := layers.NewEthernetII(pdu.MustHW("ff:ff:ff:ff:ff:ff"), pdu.MustHW("02:00:00:00:00:01"))
	ip := layers.NewIP(pdu.MustIP("10.0.0.1"), pdu.MustIP("10.0.0.2"))
	tcp := layers.NewTCP(40000, 443)
	root := pdu.Stack(eth, ip, tcp, pdu.NewRaw([]byte{1, 2, 3}))

	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	doc := Summarize(pdu.NewPacket(root, ts))

	assert.Equal(t, ts, doc.Timestamp)
	assert.Equal(t, []string{"ETHERNET_II", "IP", "TCP", "RAW"}, doc.Layers)
	assert.Equal(t, pdu.Size(root), doc.Length)
	assert.Equal(t, "10.0.0.1", doc.SrcIP)
	assert.Equal(t, "10.0.0.2", doc.DstIP)
	assert.Equal(t, uint16(40000), doc.SrcPort)
	assert.Equal(t, uint16(443), doc.DstPort)
	assert.Equal(t, "tcp", doc.Protocol)
}

func TestKafkaReporterConfigValidation(t *testing.T) {
	_, err := NewKafkaReporter(KafkaConfig{Topic: "packets"})
	require.Error(t, err)
	_, err = NewKafkaReporter(KafkaConfig{Brokers: []string{"localhost:9092"}})
	require.Error(t, err)

	r, err := NewKafkaReporter(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "packets"})
	require.NoError(t, err)
	reported, errored := r.Stats()
	assert.Zero(t, reported)
	assert.Zero(t, errored)
	require.NoError(t, r.Close())
}
