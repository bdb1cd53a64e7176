package interpreter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/NotCoffee418/p1_bridge/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var ErrGaveUp = fmt.Errorf("websocket: giving up reconnecting")

const (
	maxRetries     = 10
	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 60 * time.Second
	// DSMR 2.2 and 4 meters send a telegram every 10 s; pongs keep the
	// connection alive between them.
	readTimeout  = 30 * time.Second
	pingInterval = 10 * time.Second
)

// Listener reads readings broadcast by another instance's /ws endpoint.
type Listener struct {
	url    string
	logger *logrus.Entry
	dialer *websocket.Dialer

	maxRetries     int
	baseRetryDelay time.Duration
	maxRetryDelay  time.Duration
	readTimeout    time.Duration
	pingInterval   time.Duration
}

// ReadingFromJSON decodes a reading as broadcast on /ws.
func ReadingFromJSON(data []byte) (*types.Reading, error) {
	var r types.Reading
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func ReadingToJSON(r *types.Reading) ([]byte, error) {
	return json.Marshal(r)
}
