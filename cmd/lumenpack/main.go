// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command lumenpack builds and unpacks kpack archives. Its main job is
// packing compiled SPIR-V kernels into the archive the Vulkan backend loads
// at queue initialisation.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/devblok/lumen/utility/kpack"
)

func init() {
	if u, err := user.Current(); err != nil {
		currentUserName = "unknown"
	} else {
		currentUserName = u.Name
	}
}

var (
	currentUserName string
	author          = flag.String("author", currentUserName, "Set the author of the package when compressing")
	version         = flag.Int64("version", 1, "Archive version number to create it with")
	extract         = flag.String("e", "", "Extract the named entry into the working directory")
	list            = flag.Bool("l", false, "List the archive index")
	compress        = flag.String("c", "", "Compress the given file/folder")
	dstFile         = flag.String("f", "lumen_kernels.kpack", "Destination file")
	silent          = flag.Bool("s", false, "Silent")
)

func main() {
	var opMade bool
	flag.Parse()

	if *extract != "" && *compress != "" {
		panic(errors.New("only one operation at a time"))
	}

	if *list {
		opMade = true
		if err := listEntries(); err != nil {
			panic(err)
		}
	}

	if *extract != "" {
		opMade = true
		if err := extractFile(); err != nil {
			panic(err)
		}
	}

	if *compress != "" {
		opMade = true
		if err := compressFiles(); err != nil {
			panic(err)
		}
	}

	if !opMade {
		flag.PrintDefaults()
	}
}

func compressFiles() error {
	if _, err := os.Stat(*dstFile); err == nil {
		return errors.New("destination file exists, will not overwrite")
	}

	dst, err := os.Create(*dstFile)
	if err != nil {
		return err
	}
	defer dst.Close()

	var filesToCompress []string
	filepath.Walk(*compress, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		filesToCompress = append(filesToCompress, path)
		return nil
	})

	by := *author
	if by == "" {
		by = currentUserName
	}
	builder, err := kpack.NewBuilder(kpack.Header{
		Author:      by,
		DateCreated: time.Now().Unix(),
		Version:     *version,
	})
	if err != nil {
		return err
	}

	for _, ftc := range filesToCompress {
		data, err := os.ReadFile(ftc)
		if err != nil {
			return err
		}
		// archive entries are named by base name so the Vulkan backend
		// can look kernels up without the build-tree prefix
		if err := builder.Add(filepath.Base(ftc), data); err != nil {
			return err
		}
		if !*silent {
			fmt.Printf("added %s (%d bytes)\n", ftc, len(data))
		}
	}

	_, err = builder.WriteTo(dst)
	return err
}

func extractFile() error {
	archive, err := openArchive()
	if err != nil {
		return err
	}

	data, err := archive.ReadAll(*extract)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Base(*extract), data, 0644)
}

func listEntries() error {
	archive, err := openArchive()
	if err != nil {
		return err
	}

	for _, entry := range archive.Index() {
		fmt.Printf("%s\t%d\t%d\n", entry.Name, entry.Size, entry.CompressedSize)
	}
	return nil
}

func openArchive() (*kpack.Archive, error) {
	f, err := os.Open(*dstFile)
	if err != nil {
		return nil, err
	}
	return kpack.Open(f)
}
