package main

import (
	"github.com/jsphweid/dsmidiplayer/cmd"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver
)

func main() {
	defer midi.CloseDriver()
	cmd.Execute()
}
