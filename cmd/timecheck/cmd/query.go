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

package cmd

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/timekeeper/epoch"
	"github.com/facebook/timekeeper/ntp/protocol"
	"github.com/facebook/timekeeper/source/ntp"
)

var (
	queryServerFlag  string
	queryPortFlag    int
	queryDSCPFlag    int
	queryTimeoutFlag time.Duration
	queryRawFlag     bool
)

func init() {
	RootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryServerFlag, "server", "S", "pool.ntp.org", "server to query")
	queryCmd.Flags().IntVarP(&queryPortFlag, "port", "p", ntp.DefaultPort, "server port")
	queryCmd.Flags().IntVarP(&queryDSCPFlag, "dscp", "d", 0, "dscp value to set on requests")
	queryCmd.Flags().DurationVarP(&queryTimeoutFlag, "timeout", "t", time.Second, "how long to wait for the response")
	queryCmd.Flags().BoolVarP(&queryRawFlag, "raw", "r", false, "do a single raw exchange and dump the response packet")
}

// pollResponse drives the asynchronous request cycle of the client the same way the daemon does
func pollResponse(c *ntp.Client, timeout, interval time.Duration) (epoch.Seconds, time.Duration, error) {
	start := time.Now()
	c.SendRequest()
	for !c.IsResponseReady() {
		if time.Since(start) > timeout {
			return epoch.Invalid, time.Since(start), fmt.Errorf("no response within %v", timeout)
		}
		time.Sleep(interval)
	}
	return c.ReadResponse(), time.Since(start), nil
}

func queryRun(server string, port int, dscp int, timeout time.Duration) error {
	cfg := ntp.Config{Server: server, Port: port, DSCP: dscp, Timeout: timeout}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ep := appEpoch()
	c := ntp.NewClient(cfg, ep)
	defer c.Close()

	s, latency, err := pollResponse(c, timeout, 10*time.Millisecond)
	if err != nil {
		fmt.Printf("%s %s: %v\n", failString, server, err)
		return nil
	}
	if !s.Valid() {
		fmt.Printf("%s %s: malformed response after %v\n", failString, server, latency)
		return nil
	}
	fmt.Printf("%s %s: %s, latency %s\n", okString, server, fmtSeconds(ep, s), color.BlueString("%v", latency))
	return nil
}

type rawResult struct {
	response *protocol.Packet
	exchange *protocol.Exchange
}

func rawExchange(addr string, timeout time.Duration) (*rawResult, error) {
	conn, err := net.DialTimeout("udp", addr, timeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}

	sent := time.Now()
	request := protocol.NewRequest(sent)
	b, err := request.Bytes()
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(b); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	buf := make([]byte, protocol.PacketSizeBytes)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	received := time.Now()
	r := &rawResult{}
	r.response, err = protocol.BytesToPacket(buf[:n])
	if err != nil {
		return nil, err
	}
	if err := r.response.ValidateResponse(request); err != nil {
		return r, err
	}
	r.exchange = protocol.NewExchange(sent, r.response, received)
	return r, nil
}

func rawQueryRun(server string, port int, timeout time.Duration) error {
	r, err := rawExchange(net.JoinHostPort(server, strconv.Itoa(port)), timeout)
	if r != nil {
		spew.Dump(r.response)
	}
	if err != nil {
		return err
	}
	ep := appEpoch()
	fmt.Printf("server time: %s\n", fmtSeconds(ep, ep.FromNTP(r.response.TxTimeSec)))
	fmt.Printf("delay: %s\n", color.BlueString("%v", r.exchange.Delay()))
	fmt.Printf("offset: %s\n", color.BlueString("%v", r.exchange.Offset()))
	return nil
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query NTP server the way timekeeperd does",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		var err error
		if queryRawFlag {
			err = rawQueryRun(queryServerFlag, queryPortFlag, queryTimeoutFlag)
		} else {
			err = queryRun(queryServerFlag, queryPortFlag, queryDSCPFlag, queryTimeoutFlag)
		}
		if err != nil {
			log.Fatal(err)
		}
	},
}
