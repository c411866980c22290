/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

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
	"io/ioutil"
	"os"
	"time"

	"github.com/Tatha911/OpenIFEM/config"
	"github.com/Tatha911/OpenIFEM/fluid"
	"github.com/Tatha911/OpenIFEM/parfluid"
	"github.com/spf13/cobra"
)

type ModelRun struct {
	InputFile string
	Graph     bool
	Delay     time.Duration
}

// ChannelCmd represents the channel command
var ChannelCmd = &cobra.Command{
	Use:   "channel",
	Short: "Plane channel flow with the IMEX fluid solver",
	Long: `
Runs the incompressible Navier-Stokes solver on the built-in rectangle mesh
with a parabolic inflow. With NumProcs > 1 the run is distributed over SPMD
rank goroutines,

openifem channel -I examples/channel.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		var m ModelRun
		m.InputFile, _ = cmd.Flags().GetString("inputFile")
		m.Graph, _ = cmd.Flags().GetBool("graph")
		delay, _ := cmd.Flags().GetInt("delay")
		m.Delay = time.Duration(delay) * time.Millisecond
		p := processInput(m.InputFile)
		if np, _ := cmd.Flags().GetInt("nprocs"); cmd.Flags().Changed("nprocs") {
			p.NumProcs = np
		}
		if ft, _ := cmd.Flags().GetFloat64("finalTime"); cmd.Flags().Changed("finalTime") {
			p.EndTime = ft
		}
		RunChannel(&m, p)
	},
}

func processInput(inputFile string) (p *config.Parameters) {
	p = config.Channel()
	if len(inputFile) == 0 {
		return
	}
	data, err := ioutil.ReadFile(inputFile)
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	if err = p.Parse(data); err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	return
}

func init() {
	rootCmd.AddCommand(ChannelCmd)
	ChannelCmd.Flags().StringP("inputFile", "I", "", "YAML file for input parameters, defaults to the built-in channel case")
	ChannelCmd.Flags().BoolP("graph", "g", false, "display the mid-channel velocity profile while computing (serial runs)")
	ChannelCmd.Flags().IntP("delay", "d", 0, "milliseconds of delay for plotting")
	ChannelCmd.Flags().IntP("nprocs", "n", 1, "SPMD ranks, overrides NumProcs from the input file")
	ChannelCmd.Flags().Float64("finalTime", 0, "overrides EndTime from the input file")
}

func RunChannel(m *ModelRun, p *config.Parameters) {
	p.Print()
	if p.NumProcs > 1 {
		if err := parfluid.NewSolver(p).Run(); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		return
	}
	if !m.Graph {
		if err := fluid.NewInsIMEX(p).Run(); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		return
	}
	// The plotted run drives the step loop here so the profile can be redrawn
	// between steps.
	var (
		s  = fluid.NewInsIMEX(p)
		pl = fluid.NewPlotter(p.Height, p.UMax, m.Delay)
	)
	s.SetupDoFs()
	s.MakeConstraints()
	s.InitializeSystem()
	s.SetupCellProperty()
	for !s.Time.IsEnd() {
		s.RunOneStep()
		pl.Update(s, 4*p.NY*p.Degree)
		if s.Time.TimeToOutput() {
			if err := s.OutputResults(s.Time.Step); err != nil {
				fmt.Printf("error: %s\n", err.Error())
				os.Exit(1)
			}
		}
		if s.Time.TimeToRefine() {
			s.RefineMesh(p.MinRefinementLevel, p.MaxRefinementLevel)
		}
	}
}
