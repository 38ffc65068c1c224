package main

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for the V.21 software modem.
 *
 *		See softmodem.SoftModemMain for the details.
 *
 *---------------------------------------------------------------*/

import (
	softmodem "github.com/doismellburning/softmodem/src"
)

func main() {
	softmodem.SoftModemMain()
}
