package main

import (
	softmodem "github.com/doismellburning/softmodem/src"
)

func main() {
	softmodem.DecodeMain()
}
