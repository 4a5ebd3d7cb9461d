// gofs is a host-side tool over a filesystem image: format it, move
// files in and out, list directories, and run an interactive shell
// against a raw terminal.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/osdev-edu/gofs/console"
	"github.com/osdev-edu/gofs/disk"
	"github.com/osdev-edu/gofs/fd"
	"github.com/osdev-edu/gofs/fs"
)

func ferr(f string, s ...interface{}) {
	fmt.Fprintf(os.Stderr, f, s...)
}

func usage() {
	ferr("usage: %s -file <image> <command> [args]\n", os.Args[0])
	ferr("commands:\n")
	ferr("  mkfs              format the image\n")
	ferr("  ls <path>         list a directory\n")
	ferr("  cat <path>        print a file\n")
	ferr("  put <host> <path> copy a host file in\n")
	ferr("  get <path> <host> copy a file out\n")
	ferr("  sh                interactive shell\n")
	os.Exit(2)
}

func main() {
	var filename string
	var sectors uint

	flag.StringVar(&filename, "file", "", "the image filename")
	flag.UintVar(&sectors, "sectors", 4096, "image size in sectors (the image file is resized to it)")
	flag.Parse()

	if filename == "" || flag.NArg() < 1 {
		usage()
	}

	dev, err := disk.NewFileDisk(filename, uint32(sectors))
	if err != nil {
		ferr("opening %s: %s\n", filename, err)
		os.Exit(1)
	}

	cmd := flag.Arg(0)
	if cmd == "mkfs" {
		fsys := fs.Format(dev)
		fsys.Close()
		return
	}

	fsys := fs.Mount(dev)
	defer fsys.Close()
	table := fd.MkTable(fsys, console.NewMem(""))

	switch cmd {
	case "ls":
		p := "/"
		if flag.NArg() > 1 {
			p = flag.Arg(1)
		}
		d := table.Open(p)
		if d < 0 || !table.IsDir(d) {
			ferr("ls: %s: not a directory\n", p)
			os.Exit(1)
		}
		for {
			name, ok := table.ReadDir(d)
			if !ok {
				break
			}
			fmt.Println(name)
		}
		table.Close(d)
	case "cat":
		if flag.NArg() < 2 {
			usage()
		}
		f := table.Open(flag.Arg(1))
		if f < 0 || table.IsDir(f) {
			ferr("cat: %s: no such file\n", flag.Arg(1))
			os.Exit(1)
		}
		buf := make([]byte, 4096)
		for {
			n := table.Read(f, buf)
			if n <= 0 {
				break
			}
			os.Stdout.Write(buf[:n])
		}
		table.Close(f)
	case "put":
		if flag.NArg() < 3 {
			usage()
		}
		data, err := os.ReadFile(flag.Arg(1))
		if err != nil {
			ferr("put: %s\n", err)
			os.Exit(1)
		}
		dst := flag.Arg(2)
		table.Remove(dst)
		if !table.Create(dst, 0) {
			ferr("put: creating %s failed\n", dst)
			os.Exit(1)
		}
		f := table.Open(dst)
		if n := table.Write(f, data); n != len(data) {
			ferr("put: short write (%d of %d)\n", n, len(data))
			os.Exit(1)
		}
		table.Close(f)
	case "get":
		if flag.NArg() < 3 {
			usage()
		}
		f := table.Open(flag.Arg(1))
		if f < 0 || table.IsDir(f) {
			ferr("get: %s: no such file\n", flag.Arg(1))
			os.Exit(1)
		}
		data := make([]byte, table.Filesize(f))
		table.Read(f, data)
		table.Close(f)
		if err := os.WriteFile(flag.Arg(2), data, 0666); err != nil {
			ferr("get: %s\n", err)
			os.Exit(1)
		}
	case "sh":
		shell(fsys)
	default:
		usage()
	}
}

// shell runs a line-oriented command loop on the raw terminal.
func shell(fsys *fs.FileSys) {
	term, err := console.NewTerminal()
	if err != nil {
		ferr("sh: %s\n", err)
		os.Exit(1)
	}
	defer term.Restore()

	table := fd.MkTable(fsys, term)
	out := func(s string) { term.Putbuf([]byte(s)) }

	for {
		out("gofs> ")
		line := readLine(term)
		if line == "" {
			continue
		}
		args := strings.Fields(line)
		switch args[0] {
		case "exit":
			return
		case "ls":
			p := "."
			if len(args) > 1 {
				p = args[1]
			}
			d := table.Open(p)
			if d < 0 || !table.IsDir(d) {
				out("not a directory\r\n")
				continue
			}
			for {
				name, ok := table.ReadDir(d)
				if !ok {
					break
				}
				out(name + "\r\n")
			}
			table.Close(d)
		case "cat":
			if len(args) < 2 {
				continue
			}
			f := table.Open(args[1])
			if f < 0 || table.IsDir(f) {
				out("no such file\r\n")
				continue
			}
			buf := make([]byte, 512)
			for {
				n := table.Read(f, buf)
				if n <= 0 {
					break
				}
				table.Write(fd.Stdout, buf[:n])
			}
			out("\r\n")
			table.Close(f)
		case "mkdir":
			if len(args) < 2 || !table.Mkdir(args[1]) {
				out("mkdir failed\r\n")
			}
		case "cd":
			if len(args) < 2 || !table.Chdir(args[1]) {
				out("cd failed\r\n")
			}
		case "rm":
			if len(args) < 2 || !table.Remove(args[1]) {
				out("rm failed\r\n")
			}
		default:
			out("?\r\n")
		}
	}
}

// readLine collects keystrokes up to carriage return, echoing them.
func readLine(term *console.Terminal) string {
	var line []byte
	for {
		c := term.Getc()
		switch c {
		case '\r', '\n':
			term.Putbuf([]byte("\r\n"))
			return string(line)
		case 0x04: // EOT
			return "exit"
		case 0x7f, '\b':
			if len(line) > 0 {
				line = line[:len(line)-1]
				term.Putbuf([]byte("\b \b"))
			}
		default:
			line = append(line, c)
			term.Putbuf([]byte{c})
		}
	}
}
