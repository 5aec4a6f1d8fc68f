/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package ntp implements a time source querying an NTP server over SNTP.

The asynchronous request/response trio never blocks the caller: the request
is resolved and written from a separate goroutine, responses are collected by
a background reader and only picked up by IsResponseReady. Stale and
spoofed answers are recognized by the origin timestamp and dropped.
*/
package ntp

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	beevik "github.com/beevik/ntp"
	log "github.com/sirupsen/logrus"

	"github.com/facebook/timekeeper/dscp"
	"github.com/facebook/timekeeper/epoch"
	"github.com/facebook/timekeeper/ntp/protocol"
)

// DefaultPort is the NTP server port
const DefaultPort = 123

// queue of received datagrams not yet looked at
const packetQueueSize = 8

// Config specifies the server to query
type Config struct {
	Server  string        `yaml:"server"`
	Port    int           `yaml:"port"`
	DSCP    int           `yaml:"dscp"`
	Timeout time.Duration `yaml:"-"`
}

// Validate config is sane
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("ntp server must be specified")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("ntp port must be between 1 and 65535")
	}
	if c.DSCP < 0 || c.DSCP > dscp.Max {
		return fmt.Errorf("ntp dscp must be between 0 and %d", dscp.Max)
	}
	return nil
}

// Client is an SNTP TimeSource
type Client struct {
	cfg     Config
	epoch   epoch.Epoch
	packets chan []byte

	// guards conn, which is created lazily by the first request
	mu   sync.Mutex
	conn *net.UDPConn

	// owned by the caller of the TimeSource methods
	pending *protocol.Packet
	ready   bool
	value   epoch.Seconds
}

// NewClient returns a Client reporting time relative to ep
func NewClient(cfg Config, ep epoch.Epoch) *Client {
	return &Client{
		cfg:     cfg,
		epoch:   ep,
		packets: make(chan []byte, packetQueueSize),
		value:   epoch.Invalid,
	}
}

func (c *Client) address() string {
	return net.JoinHostPort(c.cfg.Server, strconv.Itoa(c.cfg.Port))
}

// GetNow does a full blocking exchange with the server
func (c *Client) GetNow() epoch.Seconds {
	resp, err := beevik.QueryWithOptions(c.cfg.Server, beevik.QueryOptions{
		Timeout: c.cfg.Timeout,
		Port:    c.cfg.Port,
		Dialer:  c.dial,
	})
	if err != nil {
		log.Warningf("querying %s: %v", c.address(), err)
		return epoch.Invalid
	}
	if err := resp.Validate(); err != nil {
		log.Warningf("bad response from %s: %v", c.address(), err)
		return epoch.Invalid
	}
	return c.epoch.FromTime(resp.Time)
}

// SendRequest starts a new exchange. A response to an earlier request is discarded.
func (c *Client) SendRequest() {
	req := protocol.NewRequest(time.Now())
	c.pending = req
	c.ready = false
	c.value = epoch.Invalid
	b, err := req.Bytes()
	if err != nil {
		log.Errorf("encoding ntp request: %v", err)
		return
	}
	go func() {
		conn, err := c.connect()
		if err != nil {
			log.Warningf("connecting to %s: %v", c.address(), err)
			return
		}
		if _, err := conn.Write(b); err != nil {
			log.Warningf("sending request to %s: %v", c.address(), err)
		}
	}()
}

// connect returns the socket, dialing it and starting the reader on first use
func (c *Client) connect() (*net.UDPConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := c.dial("", c.address())
	if err != nil {
		return nil, err
	}
	log.Debugf("connected to %s from %s", conn.RemoteAddr(), conn.LocalAddr())
	c.conn = conn.(*net.UDPConn)
	go c.readLoop(c.conn)
	return c.conn, nil
}

// dial opens a UDP socket to remoteAddress marked with the configured DSCP
func (c *Client) dial(localAddress, remoteAddress string) (net.Conn, error) {
	var d net.Dialer
	if localAddress != "" {
		d.LocalAddr = &net.UDPAddr{IP: net.ParseIP(localAddress)}
	}
	conn, err := d.Dial("udp", remoteAddress)
	if err != nil {
		return nil, err
	}
	if c.cfg.DSCP != 0 {
		laddr := conn.LocalAddr().(*net.UDPAddr)
		if err := dscp.Enable(conn, laddr.IP, c.cfg.DSCP); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting dscp %d: %w", c.cfg.DSCP, err)
		}
	}
	return conn, nil
}

func (c *Client) readLoop(conn *net.UDPConn) {
	for {
		buf := make([]byte, 2*protocol.PacketSizeBytes)
		n, err := conn.Read(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Warningf("reading from %s: %v", c.address(), err)
			}
			return
		}
		select {
		case c.packets <- buf[:n]:
		default:
			log.Warning("ntp packet queue is full, dropping packet")
		}
	}
}

// IsResponseReady checks for a response to the outstanding request without blocking
func (c *Client) IsResponseReady() bool {
	if c.ready {
		return true
	}
	for {
		select {
		case b := <-c.packets:
			if c.accept(b) {
				return true
			}
		default:
			return false
		}
	}
}

// accept matches a datagram to the pending request, returns true if the exchange is over
func (c *Client) accept(b []byte) bool {
	if c.pending == nil {
		return false
	}
	p, err := protocol.BytesToPacket(b)
	if err != nil {
		log.Debugf("ignoring datagram: %v", err)
		return false
	}
	if p.OrigTimeSec != c.pending.TxTimeSec || p.OrigTimeFrac != c.pending.TxTimeFrac {
		log.Debug("ignoring response to another request")
		return false
	}
	req := c.pending
	c.pending = nil
	c.ready = true
	if err := p.ValidateResponse(req); err != nil {
		log.Warningf("bad response from %s: %v", c.address(), err)
		c.value = epoch.Invalid
		return true
	}
	c.value = c.epoch.FromNTP(p.TxTimeSec)
	return true
}

// ReadResponse returns the server transmit time, epoch.Invalid if the response was bad
func (c *Client) ReadResponse() epoch.Seconds {
	if !c.ready {
		return epoch.Invalid
	}
	v := c.value
	c.ready = false
	c.value = epoch.Invalid
	return v
}

// Close releases the socket
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
