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
	"os"

	"github.com/Tatha911/OpenIFEM/fsi"
	"github.com/spf13/cobra"
)

// FsiCmd represents the fsi command
var FsiCmd = &cobra.Command{
	Use:   "fsi",
	Short: "Channel flow coupled to an immersed oscillating disk",
	Long: `
Runs the fluid solver with the immersed-boundary coupling: cells covered by
the rigid disk carry its acceleration and stress into the fluid system,

openifem fsi -I examples/channel.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		inputFile, _ := cmd.Flags().GetString("inputFile")
		p := processInput(inputFile)
		if ft, _ := cmd.Flags().GetFloat64("finalTime"); cmd.Flags().Changed("finalTime") {
			p.EndTime = ft
		}
		p.Print()
		d := fsi.NewDriver(p, fsi.DiskFromParameters(p))
		if err := d.Run(); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(FsiCmd)
	FsiCmd.Flags().StringP("inputFile", "I", "", "YAML file for input parameters, defaults to the built-in channel case")
	FsiCmd.Flags().Float64("finalTime", 0, "overrides EndTime from the input file")
}
