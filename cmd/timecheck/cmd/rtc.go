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
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/timekeeper/epoch"
	"github.com/facebook/timekeeper/source/rtc"
)

var rtcDeviceFlag string

func init() {
	RootCmd.AddCommand(rtcCmd)
	rtcCmd.PersistentFlags().StringVarP(&rtcDeviceFlag, "device", "D", rtc.DefaultDevice, "RTC device")
	rtcCmd.AddCommand(rtcReadCmd)
	rtcCmd.AddCommand(rtcSetCmd)
}

func openRTC() (*rtc.Clock, error) {
	dev, err := rtc.Open(rtcDeviceFlag)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", rtcDeviceFlag, err)
	}
	return rtc.New(dev, appEpoch()), nil
}

func rtcReadRun() error {
	c, err := openRTC()
	if err != nil {
		return err
	}
	defer c.Close()
	s := c.GetNow()
	fmt.Printf("%s: %s\n", rtcDeviceFlag, fmtSeconds(appEpoch(), s))
	return nil
}

// parseTarget accepts either epoch seconds or "now" for the current system time
func parseTarget(ep epoch.Epoch, arg string, now time.Time) (epoch.Seconds, error) {
	if arg == "now" {
		return ep.FromTime(now), nil
	}
	var v int32
	if _, err := fmt.Sscanf(arg, "%d", &v); err != nil {
		return epoch.Invalid, fmt.Errorf("parsing epoch seconds %q: %w", arg, err)
	}
	s := epoch.Seconds(v)
	if !s.Valid() {
		return epoch.Invalid, fmt.Errorf("%d is not a valid time", v)
	}
	return s, nil
}

func rtcSetRun(arg string) error {
	ep := appEpoch()
	s, err := parseTarget(ep, arg, time.Now())
	if err != nil {
		return err
	}
	c, err := openRTC()
	if err != nil {
		return err
	}
	defer c.Close()
	c.SetNow(s)
	fmt.Printf("%s: %s\n", rtcDeviceFlag, fmtSeconds(ep, c.GetNow()))
	return nil
}

var rtcCmd = &cobra.Command{
	Use:   "rtc",
	Short: "Read or set the RTC chip the way timekeeperd does",
}

var rtcReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Print RTC time",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := rtcReadRun(); err != nil {
			log.Fatal(err)
		}
	},
}

var rtcSetCmd = &cobra.Command{
	Use:   "set SECONDS|now",
	Short: "Set RTC time",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		if err := rtcSetRun(args[0]); err != nil {
			log.Fatal(err)
		}
	},
}
