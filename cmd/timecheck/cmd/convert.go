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
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/timekeeper/epoch"
)

var convertUnixFlag bool

func init() {
	RootCmd.AddCommand(convertCmd)
	convertCmd.Flags().BoolVarP(&convertUnixFlag, "unix", "u", false, "treat arguments as unix seconds instead of NTP seconds")
}

func convert(ep epoch.Epoch, arg string, unixSeconds bool) (epoch.Seconds, error) {
	if unixSeconds {
		v, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return epoch.Invalid, fmt.Errorf("parsing unix seconds %q: %w", arg, err)
		}
		return ep.FromUnix(v), nil
	}
	v, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return epoch.Invalid, fmt.Errorf("parsing NTP seconds %q: %w", arg, err)
	}
	return ep.FromNTP(uint32(v)), nil
}

func convertRun(args []string) error {
	ep := appEpoch()
	for _, arg := range args {
		s, err := convert(ep, arg, convertUnixFlag)
		if err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", arg, fmtSeconds(ep, s))
	}
	return nil
}

var convertCmd = &cobra.Command{
	Use:   "convert SECONDS...",
	Short: "Convert NTP (or unix) seconds to timekeeper epoch seconds",
	Args:  cobra.MinimumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		if err := convertRun(args); err != nil {
			log.Fatal(err)
		}
	},
}
