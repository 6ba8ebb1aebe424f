package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTemperature records a sensor temperature reading.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Dropped silently when the client is closed or disconnected.
func (c *Client) WriteTemperature(deviceID string, celsius float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"temperature",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"celsius": celsius,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteAngle records a vent angle change.
func (c *Client) WriteAngle(deviceID string, angle int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"vent_angle",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"degrees": angle,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
