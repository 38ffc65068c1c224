package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	List the audio devices that could be used.
 *
 * Description:	PortAudio gives us the names it will accept for
 *		audio.input_device and audio.output_device.  udev gives
 *		the kernel's view of the sound cards, with vendor and
 *		model, which helps pick out a USB dongle among several.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"io"
	"strings"

	"github.com/gordonklaus/portaudio"
	"github.com/jochenvg/go-udev"
)

// AudioDevice is one PortAudio device.
type AudioDevice struct {
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
}

// ListAudioDevices returns every PortAudio device. portaudio.Initialize must
// have been called.
func ListAudioDevices() ([]AudioDevice, error) {
	var infos, err = portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio devices: %w", err)
	}

	var devices = make([]AudioDevice, 0, len(infos))

	for _, info := range infos {
		var d = AudioDevice{
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
		}

		if info.HostApi != nil {
			d.HostAPI = info.HostApi.Name
		}

		devices = append(devices, d)
	}

	return devices, nil
}

// SoundCard is a kernel sound card as reported by udev.
type SoundCard struct {
	Syspath string
	Sysname string
	Devnode string
	Vendor  string
	Model   string
}

// ListSoundCards returns the initialised "sound" subsystem devices that
// represent whole cards (sysname cardN).
func ListSoundCards() ([]SoundCard, error) {
	var u = udev.Udev{}
	var e = u.NewEnumerate()

	var err = e.AddMatchSubsystem("sound")
	if err != nil {
		return nil, fmt.Errorf("udev match subsystem: %w", err)
	}

	err = e.AddMatchIsInitialized()
	if err != nil {
		return nil, fmt.Errorf("udev match initialized: %w", err)
	}

	var devices, devErr = e.Devices()
	if devErr != nil {
		return nil, fmt.Errorf("udev enumerate: %w", devErr)
	}

	var cards []SoundCard

	for _, d := range devices {
		if !strings.HasPrefix(d.Sysname(), "card") {
			continue
		}

		cards = append(cards, SoundCard{
			Syspath: d.Syspath(),
			Sysname: d.Sysname(),
			Devnode: d.Devnode(),
			Vendor:  firstNonEmpty(d.PropertyValue("ID_VENDOR_FROM_DATABASE"), d.PropertyValue("ID_VENDOR")),
			Model:   firstNonEmpty(d.PropertyValue("ID_MODEL_FROM_DATABASE"), d.PropertyValue("ID_MODEL")),
		})
	}

	return cards, nil
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}

	return ""
}

// PrintDevices writes both lists in a human readable form. Either list
// failing is reported inline rather than aborting the other.
func PrintDevices(w io.Writer) {
	fmt.Fprintf(w, "Audio devices:\n")

	var devices, devErr = ListAudioDevices()
	if devErr != nil {
		fmt.Fprintf(w, "    %s\n", devErr)
	}

	for i, d := range devices {
		fmt.Fprintf(w, "    %2d  %-40s  %-12s  in %d  out %d  %.0f Hz\n",
			i, d.Name, d.HostAPI, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
	}

	fmt.Fprintf(w, "\nSound cards:\n")

	var cards, cardErr = ListSoundCards()
	if cardErr != nil {
		fmt.Fprintf(w, "    %s\n", cardErr)
	}

	for _, c := range cards {
		fmt.Fprintf(w, "    %-8s  %s %s  %s\n", c.Sysname, c.Vendor, c.Model, c.Syspath)
	}
}
