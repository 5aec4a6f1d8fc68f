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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"

	"github.com/facebook/timekeeper/daemon"
	"github.com/facebook/timekeeper/epoch"
	"github.com/facebook/timekeeper/syncer"
)

// Counters is what timekeeperd exports over JSON
type Counters map[string]int64

var statusAddressFlag string

func init() {
	RootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusAddressFlag, "address", "a", fmt.Sprintf("http://localhost:%d", daemon.DefaultMonitoringPort), "timekeeperd monitoring address")
}

// FetchCounters fetches all counters from timekeeperd
func FetchCounters(url string) (Counters, error) {
	counters := make(Counters)
	c := http.Client{
		Timeout: time.Second * 2,
	}

	resp, err := c.Get(url)
	if err != nil {
		return counters, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return counters, err
	}
	err = json.Unmarshal(b, &counters)
	return counters, err
}

// describe renders counters which are enums or epoch seconds in a human readable way
func describe(ep epoch.Epoch, key string, value int64) string {
	switch key {
	case daemon.CounterState:
		return syncer.State(value).String()
	case daemon.CounterNow:
		return fmtSeconds(ep, epoch.Seconds(value))
	case daemon.CounterHealthOK, daemon.CounterInitialized:
		if value == 1 {
			return okString
		}
		return failString
	}
	return ""
}

func statusRun(w io.Writer, counters Counters) {
	ep := appEpoch()
	keys := maps.Keys(counters)
	sort.Strings(keys)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"counter", "value", "meaning"})
	for _, k := range keys {
		v := counters[k]
		table.Append([]string{k, strconv.FormatInt(v, 10), describe(ep, k, v)})
	}
	table.Render()
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print counters of running timekeeperd",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		counters, err := FetchCounters(statusAddressFlag)
		if err != nil {
			log.Fatalf("fetching counters from %s: %v", statusAddressFlag, err)
		}
		statusRun(os.Stdout, counters)
	},
}
