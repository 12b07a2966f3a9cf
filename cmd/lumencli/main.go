// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/devblok/lumen/bridge"

	_ "github.com/devblok/lumen/device/cpu"
	_ "github.com/devblok/lumen/device/vulkan"
)

var (
	deviceType   = flag.String("device", "NONE", "Device type to enumerate, NONE lists everything")
	capabilities = flag.Bool("capabilities", false, "Print the system capability report instead of the device list")
)

func main() {
	flag.Parse()

	if *capabilities {
		fmt.Println(bridge.SystemInfo())
		return
	}

	devices, err := bridge.AvailableDevices(*deviceType)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	bytes, err := json.MarshalIndent(devices, "", "\t")
	if err != nil {
		panic(err)
	}
	fmt.Printf("%s\n", bytes)
}
