package app

import (
	"fmt"
	"log"

	"github.com/relabs-tech/motion_engine/internal/config"
	"github.com/relabs-tech/motion_engine/internal/imu"
	"github.com/relabs-tech/motion_engine/internal/transport"
)

// RunRegisterDump configures the sensor, reads back every documented
// register and prints the values with their field annotations. Useful for
// checking what the configuration actually wrote to the chip.
func RunRegisterDump() error {
	cfg := config.Get()
	imuCfg, err := cfg.IMUConfig()
	if err != nil {
		return err
	}

	bus, err := transport.OpenI2C(cfg.I2CBus, imu.MPUAddress)
	if err != nil {
		return err
	}
	defer bus.Close()

	driver, err := imu.New(bus, imuCfg)
	if err != nil {
		return err
	}

	if err := driver.Init(); err != nil {
		return err
	}
	defer driver.PowerOff()

	values, err := driver.DumpRegisters(imu.MPUAddress, imu.MPURegisters())
	if err != nil {
		return err
	}
	printRegisters("MPU-9250", values)

	if imuCfg.EnableMag {
		akValues, err := driver.DumpRegisters(imu.AKAddress, imu.AKRegisters())
		if err != nil {
			log.Printf("regdump: magnetometer read failed: %v", err)
		} else {
			printRegisters("AK8963", akValues)
		}
	}

	return nil
}

func printRegisters(device string, values []imu.RegisterValue) {
	fmt.Printf("\n=== %s ===\n", device)
	fmt.Printf("%-6s %-18s %-6s %s\n", "ADDR", "NAME", "VALUE", "DESCRIPTION")
	for _, v := range values {
		fmt.Printf("0x%02X   %-18s 0x%02X   %s\n", v.Address, v.Name, v.Value, v.Desc)
		for _, f := range v.Fields {
			fmt.Printf("       · [%s] %s: %s\n", f.Bits, f.Name, f.Desc)
		}
	}
}
