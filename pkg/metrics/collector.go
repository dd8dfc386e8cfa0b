package metrics

import (
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector Prometheus metrics collector
type Collector struct {
	// Live connection counts, read from the relay registry at scrape time
	GetConnectedCounts func() map[string]int // keyed by device type

	// Info metric (always 1)
	serverInfo *prometheus.Desc

	// Relay metrics
	clientsConnected   *prometheus.Desc
	connectsTotal      *prometheus.Desc
	disconnectsTotal   *prometheus.Desc
	messagesRelayed    *prometheus.Desc
	relaySendFailures  *prometheus.Desc
	pingsTotal         *prometheus.Desc
	unknownSenderTotal *prometheus.Desc

	// Room metrics
	roomsCreatedTotal *prometheus.Desc

	// ADB metrics
	adbCommandsTotal *prometheus.Desc

	// Metrics counters (protected by mutex)
	metricsLock        sync.RWMutex
	connectsByType     map[string]float64
	disconnectsByType  map[string]float64
	relayedByType      map[string]float64
	sendFailuresByType map[string]float64
	pingsCount         float64
	unknownSenderCount float64
	roomsCreated       float64
	adbCommandsByState map[string]float64
}

// NewCollector creates a new metrics collector
func NewCollector(getConnectedCounts func() map[string]int) *Collector {
	return &Collector{
		GetConnectedCounts: getConnectedCounts,
		serverInfo: prometheus.NewDesc(
			"air_relay_server_info",
			"Relay server process info metric (always 1)",
			[]string{"node", "pod"},
			nil,
		),
		clientsConnected: prometheus.NewDesc(
			"air_relay_clients_connected",
			"Number of currently connected clients by device type",
			[]string{"device_type", "node", "pod"},
			nil,
		),
		connectsTotal: prometheus.NewDesc(
			"air_relay_connects_total",
			"Total client admissions by device type",
			[]string{"device_type", "node", "pod"},
			nil,
		),
		disconnectsTotal: prometheus.NewDesc(
			"air_relay_disconnects_total",
			"Total client disconnects by device type",
			[]string{"device_type", "node", "pod"},
			nil,
		),
		messagesRelayed: prometheus.NewDesc(
			"air_relay_messages_relayed_total",
			"Total application messages relayed, labeled by the sender's device type",
			[]string{"device_type", "node", "pod"},
			nil,
		),
		relaySendFailures: prometheus.NewDesc(
			"air_relay_send_failures_total",
			"Total per-recipient send failures during fan-out, labeled by the recipient's device type",
			[]string{"device_type", "node", "pod"},
			nil,
		),
		pingsTotal: prometheus.NewDesc(
			"air_relay_pings_total",
			"Total liveness probes answered",
			[]string{"node", "pod"},
			nil,
		),
		unknownSenderTotal: prometheus.NewDesc(
			"air_relay_unknown_sender_total",
			"Total messages dropped because the sender was not in the registry",
			[]string{"node", "pod"},
			nil,
		),
		roomsCreatedTotal: prometheus.NewDesc(
			"air_relay_rooms_created_total",
			"Total rooms created",
			[]string{"node", "pod"},
			nil,
		),
		adbCommandsTotal: prometheus.NewDesc(
			"air_relay_adb_commands_total",
			"Total adb commands executed by outcome",
			[]string{"outcome", "node", "pod"},
			nil,
		),
		connectsByType:     make(map[string]float64),
		disconnectsByType:  make(map[string]float64),
		relayedByType:      make(map[string]float64),
		sendFailuresByType: make(map[string]float64),
		adbCommandsByState: make(map[string]float64),
	}
}

// RecordConnect records a client admission
func (c *Collector) RecordConnect(deviceType string) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.connectsByType[deviceType]++
}

// RecordDisconnect records a client disconnect
func (c *Collector) RecordDisconnect(deviceType string) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.disconnectsByType[deviceType]++
}

// RecordRelayedMessage records one relayed application message by sender device type
func (c *Collector) RecordRelayedMessage(senderType string) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.relayedByType[senderType]++
}

// RecordSendFailure records a per-recipient send failure during fan-out
func (c *Collector) RecordSendFailure(recipientType string) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.sendFailuresByType[recipientType]++
}

// RecordPing records an answered liveness probe
func (c *Collector) RecordPing() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.pingsCount++
}

// RecordUnknownSender records a dropped message from an unregistered handle
func (c *Collector) RecordUnknownSender() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.unknownSenderCount++
}

// RecordRoomCreated records a created room
func (c *Collector) RecordRoomCreated() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.roomsCreated++
}

// RecordADBCommand records an executed adb command by outcome (low cardinality)
func (c *Collector) RecordADBCommand(outcome string) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.adbCommandsByState[outcome]++
}

// Describe implements prometheus.Collector interface
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.serverInfo
	ch <- c.clientsConnected
	ch <- c.connectsTotal
	ch <- c.disconnectsTotal
	ch <- c.messagesRelayed
	ch <- c.relaySendFailures
	ch <- c.pingsTotal
	ch <- c.unknownSenderTotal
	ch <- c.roomsCreatedTotal
	ch <- c.adbCommandsTotal
}

// Collect implements prometheus.Collector interface
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	nodeName := os.Getenv("NODE_NAME")
	if nodeName == "" {
		nodeName = "unknown"
	}

	podName := os.Getenv("POD_NAME")
	if podName == "" {
		podName = os.Getenv("HOSTNAME")
		if podName == "" {
			podName = "unknown"
		}
	}

	ch <- prometheus.MustNewConstMetric(
		c.serverInfo,
		prometheus.GaugeValue,
		1,
		nodeName, podName,
	)

	for deviceType, count := range c.GetConnectedCounts() {
		ch <- prometheus.MustNewConstMetric(
			c.clientsConnected,
			prometheus.GaugeValue,
			float64(count),
			deviceType, nodeName, podName,
		)
	}

	c.metricsLock.RLock()
	defer c.metricsLock.RUnlock()

	for deviceType, value := range c.connectsByType {
		ch <- prometheus.MustNewConstMetric(
			c.connectsTotal,
			prometheus.CounterValue,
			value,
			deviceType, nodeName, podName,
		)
	}

	for deviceType, value := range c.disconnectsByType {
		ch <- prometheus.MustNewConstMetric(
			c.disconnectsTotal,
			prometheus.CounterValue,
			value,
			deviceType, nodeName, podName,
		)
	}

	for deviceType, value := range c.relayedByType {
		ch <- prometheus.MustNewConstMetric(
			c.messagesRelayed,
			prometheus.CounterValue,
			value,
			deviceType, nodeName, podName,
		)
	}

	for deviceType, value := range c.sendFailuresByType {
		ch <- prometheus.MustNewConstMetric(
			c.relaySendFailures,
			prometheus.CounterValue,
			value,
			deviceType, nodeName, podName,
		)
	}

	ch <- prometheus.MustNewConstMetric(
		c.pingsTotal,
		prometheus.CounterValue,
		c.pingsCount,
		nodeName, podName,
	)

	ch <- prometheus.MustNewConstMetric(
		c.unknownSenderTotal,
		prometheus.CounterValue,
		c.unknownSenderCount,
		nodeName, podName,
	)

	ch <- prometheus.MustNewConstMetric(
		c.roomsCreatedTotal,
		prometheus.CounterValue,
		c.roomsCreated,
		nodeName, podName,
	)

	for outcome, value := range c.adbCommandsByState {
		ch <- prometheus.MustNewConstMetric(
			c.adbCommandsTotal,
			prometheus.CounterValue,
			value,
			outcome, nodeName, podName,
		)
	}
}
