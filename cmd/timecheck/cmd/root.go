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
	"os"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/facebook/timekeeper/epoch"
)

// RootCmd is a main entry point. It's exported so timecheck could be easily extended without touching core functionality.
var RootCmd = &cobra.Command{
	Use:   "timecheck",
	Short: "Swiss Army Knife for timekeeper",
}

var (
	verbose   bool
	epochYear int
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	RootCmd.PersistentFlags().IntVarP(&epochYear, "epoch", "e", epoch.DefaultYear, "epoch year timekeeper seconds are counted from")
}

// ConfigureVerbosity configures log verbosity based on parsed flags. Needs to be called by any subcommand.
func ConfigureVerbosity() {
	log.SetLevel(log.InfoLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}
}

// Execute is the main entry point for CLI interface
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func appEpoch() epoch.Epoch {
	return epoch.New(epochYear)
}

var okString = color.GreenString("[ OK ]")
var failString = color.RedString("[FAIL]")

// fmtSeconds prints epoch seconds along with the calendar time they stand for
func fmtSeconds(ep epoch.Epoch, s epoch.Seconds) string {
	if !s.Valid() {
		return color.RedString("invalid")
	}
	return fmt.Sprintf("%d (%s)", s, ep.ToTime(s).UTC().Format("2006-01-02 15:04:05 MST"))
}
