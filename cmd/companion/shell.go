package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/catdetector/companion/internal/codec"
	"github.com/catdetector/companion/internal/controller"
	"github.com/catdetector/companion/internal/editor"
	"github.com/catdetector/companion/internal/geo"
	"github.com/catdetector/companion/pkg/core"
)

// Controller is what the shell drives.
type Controller interface {
	ConfigureBroker(b core.BrokerConfig) error
	EnterEditing() error
	AddPoint(click geo.DisplayPoint) (core.Point, error)
	FinishZone() (core.Zone, error)
	UndoPoint() bool
	ClearAll()
	Cancel() error
	SaveZones() (editor.SaveResult, error)
	ImportZones(data []byte) (core.ZoneConfig, error)
	UpdateScript(u core.ScriptUpdate) error
	Servo(cmd core.ServoCommand) error
	SetDisplaySize(size geo.Size)
	Overlay() ([]geo.Shape, error)
	Snapshot() controller.Snapshot
}

var errQuit = errors.New("quit")

type command struct {
	usage string
	help  string
	run   func(sh *Shell, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"broker":  {"broker <host> <port>", "save broker settings and reconnect", (*Shell).cmdBroker},
		"status":  {"status", "show connection and detector status", (*Shell).cmdStatus},
		"view":    {"view <width> <height>", "set the size the frame is displayed at", (*Shell).cmdView},
		"edit":    {"edit", "open the zone editor on the current zones", (*Shell).cmdEdit},
		"point":   {"point <x> <y>", "add a vertex at a display position", (*Shell).cmdPoint},
		"undo":    {"undo", "remove the last vertex of the current zone", (*Shell).cmdUndo},
		"finish":  {"finish", "close the current zone", (*Shell).cmdFinish},
		"clear":   {"clear", "remove all zones from the editor", (*Shell).cmdClear},
		"cancel":  {"cancel", "close the editor without saving", (*Shell).cmdCancel},
		"save":    {"save", "save the zones and send them to the detector", (*Shell).cmdSave},
		"import":  {"import <file>", "load zones from a JSON file and send them", (*Shell).cmdImport},
		"export":  {"export <file>", "write the current zones to a JSON file", (*Shell).cmdExport},
		"script":  {"script [confidence=<0-1>] [cooldown=<seconds>]", "update detector thresholds", (*Shell).cmdScript},
		"servo":   {"servo activate|deactivate", "drive the deterrent manually", (*Shell).cmdServo},
		"overlay": {"overlay", "list the shapes drawn over the frame", (*Shell).cmdOverlay},
		"zones":   {"zones [at <x> <y>]", "list the saved zones, or those covering a native pixel", (*Shell).cmdZones},
		"help":    {"help", "show this list", (*Shell).cmdHelp},
		"quit":    {"quit", "exit", func(*Shell, []string) error { return errQuit }},
	}
	commands["exit"] = commands["quit"]
}

// Shell reads commands line by line and prints their results.
type Shell struct {
	ctl Controller
	in  *bufio.Scanner
	out io.Writer
}

func NewShell(ctl Controller, in io.Reader, out io.Writer) *Shell {
	return &Shell{ctl: ctl, in: bufio.NewScanner(in), out: out}
}

// PromptBroker asks for broker settings until valid ones are saved. It
// returns false when input ends first.
func (sh *Shell) PromptBroker() bool {
	def := core.DefaultBrokerConfig()
	fmt.Fprintln(sh.out, "Broker not configured.")
	for {
		host, ok := sh.ask(fmt.Sprintf("Broker host [%s]: ", def.Host))
		if !ok {
			return false
		}
		if host == "" {
			host = def.Host
		}
		portText, ok := sh.ask(fmt.Sprintf("Broker port [%d]: ", def.Port))
		if !ok {
			return false
		}
		port := def.Port
		if portText != "" {
			p, err := strconv.Atoi(portText)
			if err != nil {
				fmt.Fprintf(sh.out, "error: port must be a number\n")
				continue
			}
			port = p
		}
		if err := sh.ctl.ConfigureBroker(core.BrokerConfig{Host: host, Port: port}); err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
			continue
		}
		return true
	}
}

func (sh *Shell) ask(prompt string) (string, bool) {
	fmt.Fprint(sh.out, prompt)
	if !sh.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(sh.in.Text()), true
}

// Run processes commands until quit or end of input.
func (sh *Shell) Run() {
	fmt.Fprintln(sh.out, `Type "help" for commands.`)
	for {
		line, ok := sh.ask("> ")
		if !ok {
			return
		}
		if err := sh.Exec(line); errors.Is(err, errQuit) {
			return
		} else if err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}

// Exec runs a single command line.
func (sh *Shell) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, ok := commands[strings.ToLower(fields[0])]
	if !ok {
		return fmt.Errorf("unknown command %q", fields[0])
	}
	return cmd.run(sh, fields[1:])
}

func (sh *Shell) cmdBroker(args []string) error {
	if len(args) != 2 {
		return usageError("broker")
	}
	port, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("port must be a number")
	}
	if err := sh.ctl.ConfigureBroker(core.BrokerConfig{Host: args[0], Port: port}); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Connecting to %s:%d...\n", args[0], port)
	return nil
}

func (sh *Shell) cmdStatus([]string) error {
	snap := sh.ctl.Snapshot()
	fmt.Fprintf(sh.out, "Channel:   %s (%s)\n", snap.Status, snap.Reason)
	if snap.Broker.Host != "" {
		fmt.Fprintf(sh.out, "Broker:    %s:%d %s\n", snap.Broker.Host, snap.Broker.Port, snap.ClientID)
	}
	fmt.Fprintf(sh.out, "Detector:  %s\n", snap.DetectionStatus)
	if snap.HasImage {
		fmt.Fprintf(sh.out, "Image:     %.0fx%.0f (%d frames)\n", snap.ImageSize.Width, snap.ImageSize.Height, snap.Frames)
	} else {
		fmt.Fprintln(sh.out, "Image:     waiting for first frame")
	}
	fmt.Fprintf(sh.out, "Zones:     %d\n", len(snap.Zones.ActivationAreas))
	fmt.Fprintf(sh.out, "Script:    confidence=%.2f cooldown=%ds\n", snap.Script.Confidence, snap.Script.Cooldown)
	if snap.Editor.State == editor.Editing {
		fmt.Fprintf(sh.out, "Editor:    %d zones, %d points in current zone\n", len(snap.Editor.Zones), len(snap.Editor.Current))
	}
	if snap.Notice.Text != "" {
		fmt.Fprintf(sh.out, "Notice:    [%s] %s\n", snap.Notice.Level, snap.Notice.Text)
	}
	return nil
}

func (sh *Shell) cmdView(args []string) error {
	if len(args) != 2 {
		return usageError("view")
	}
	w, err1 := strconv.ParseFloat(args[0], 64)
	h, err2 := strconv.ParseFloat(args[1], 64)
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return fmt.Errorf("width and height must be positive numbers")
	}
	sh.ctl.SetDisplaySize(geo.Size{Width: w, Height: h})
	return nil
}

func (sh *Shell) cmdEdit([]string) error {
	if err := sh.ctl.EnterEditing(); err != nil {
		return err
	}
	fmt.Fprintln(sh.out, "Editing zones. Add points, then finish and save.")
	return nil
}

func (sh *Shell) cmdPoint(args []string) error {
	if len(args) != 2 {
		return usageError("point")
	}
	x, err1 := strconv.ParseFloat(args[0], 64)
	y, err2 := strconv.ParseFloat(args[1], 64)
	if err1 != nil || err2 != nil {
		return fmt.Errorf("coordinates must be numbers")
	}
	p, err := sh.ctl.AddPoint(geo.DisplayPoint{X: x, Y: y})
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Point (%d, %d)\n", p.X, p.Y)
	return nil
}

func (sh *Shell) cmdUndo([]string) error {
	if !sh.ctl.UndoPoint() {
		fmt.Fprintln(sh.out, "Nothing to undo.")
	}
	return nil
}

func (sh *Shell) cmdFinish([]string) error {
	z, err := sh.ctl.FinishZone()
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Zone closed with %d points.\n", len(z))
	return nil
}

func (sh *Shell) cmdClear([]string) error {
	sh.ctl.ClearAll()
	return nil
}

func (sh *Shell) cmdCancel([]string) error {
	return sh.ctl.Cancel()
}

func (sh *Shell) cmdSave([]string) error {
	res, err := sh.ctl.SaveZones()
	if res.DroppedPoints > 0 {
		fmt.Fprintf(sh.out, "warning: unfinished zone with %d points was not saved\n", res.DroppedPoints)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Saved %d zones.\n", len(res.Config.ActivationAreas))
	return nil
}

func (sh *Shell) cmdImport(args []string) error {
	if len(args) != 1 {
		return usageError("import")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	cfg, err := sh.ctl.ImportZones(data)
	var ferr *codec.FormatError
	if errors.As(err, &ferr) {
		return err
	}
	fmt.Fprintf(sh.out, "Imported %d zones.\n", len(cfg.ActivationAreas))
	return err
}

func (sh *Shell) cmdExport(args []string) error {
	if len(args) != 1 {
		return usageError("export")
	}
	data, err := codec.EncodeZoneConfig(sh.ctl.Snapshot().Zones)
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], data, 0644); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Wrote %s\n", args[0])
	return nil
}

func (sh *Shell) cmdScript(args []string) error {
	if len(args) == 0 {
		return usageError("script")
	}
	var u core.ScriptUpdate
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return usageError("script")
		}
		switch strings.ToLower(key) {
		case "confidence":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("confidence must be a number")
			}
			u.Confidence = &v
		case "cooldown":
			v, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("cooldown must be a whole number of seconds")
			}
			u.Cooldown = &v
		default:
			return fmt.Errorf("unknown setting %q", key)
		}
	}
	if err := sh.ctl.UpdateScript(u); err != nil {
		return err
	}
	fmt.Fprintln(sh.out, "Script settings sent.")
	return nil
}

func (sh *Shell) cmdServo(args []string) error {
	if len(args) != 1 {
		return usageError("servo")
	}
	cmd, err := core.ParseServoCommand(args[0])
	if err != nil {
		return err
	}
	if err := sh.ctl.Servo(cmd); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Sent %s.\n", cmd)
	return nil
}

func (sh *Shell) cmdOverlay([]string) error {
	shapes, err := sh.ctl.Overlay()
	if err != nil {
		return err
	}
	for _, s := range shapes {
		pts := make([]string, len(s.Points))
		for i, p := range s.Points {
			pts[i] = fmt.Sprintf("(%.1f,%.1f)", p.X, p.Y)
		}
		fmt.Fprintf(sh.out, "%-5s %s\n", s.Kind, strings.Join(pts, " "))
	}
	return nil
}

func (sh *Shell) cmdZones(args []string) error {
	cfg := sh.ctl.Snapshot().Zones
	if len(args) > 0 {
		return sh.zonesAt(cfg, args)
	}
	if len(cfg.ActivationAreas) == 0 {
		fmt.Fprintln(sh.out, "No zones.")
	}
	for i, z := range cfg.ActivationAreas {
		fmt.Fprintf(sh.out, "%d: %d points, area %.0f px\n", i+1, len(z), geo.ZoneArea(z))
	}
	if c := cfg.CropRegion; c != nil {
		fmt.Fprintf(sh.out, "crop: x=%d y=%d w=%d h=%d\n", c.X, c.Y, c.W, c.H)
	}
	return nil
}

func (sh *Shell) zonesAt(cfg core.ZoneConfig, args []string) error {
	if len(args) != 3 || args[0] != "at" {
		return usageError("zones")
	}
	x, errX := strconv.Atoi(args[1])
	y, errY := strconv.Atoi(args[2])
	if errX != nil || errY != nil {
		return errors.New("x and y must be whole pixel numbers")
	}
	hits, err := geo.ZonesContaining(cfg, core.Point{X: x, Y: y})
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintf(sh.out, "No zone covers (%d, %d).\n", x, y)
		return nil
	}
	names := make([]string, len(hits))
	for i, h := range hits {
		names[i] = strconv.Itoa(h + 1)
	}
	fmt.Fprintf(sh.out, "(%d, %d) is in zone %s.\n", x, y, strings.Join(names, ", "))
	return nil
}

func (sh *Shell) cmdHelp([]string) error {
	for _, name := range commandOrder {
		c := commands[name]
		fmt.Fprintf(sh.out, "  %-48s %s\n", c.usage, c.help)
	}
	return nil
}

var commandOrder = []string{
	"broker", "status", "view", "edit", "point", "undo", "finish", "clear",
	"cancel", "save", "import", "export", "script", "servo", "overlay", "zones",
	"help", "quit",
}

func usageError(name string) error {
	return fmt.Errorf("usage: %s", commands[name].usage)
}
