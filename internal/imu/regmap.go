// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "fmt"

// RegisterInfo describes one hardware register for the debug tooling.
type RegisterInfo struct {
	Address byte       `json:"address"`
	Name    string     `json:"name"`
	Access  string     `json:"access"`
	Desc    string     `json:"description"`
	Fields  []BitField `json:"bit_fields,omitempty"`
}

// BitField documents a named field inside a register.
type BitField struct {
	Bits   string `json:"bits"`
	Name   string `json:"name"`
	Desc   string `json:"description"`
	Values string `json:"values,omitempty"`
}

// RegisterValue is a snapshot of one register as read off the bus.
type RegisterValue struct {
	RegisterInfo
	Value byte `json:"value"`
}

// MPURegisters lists the MPU-9250 registers the driver touches, for the
// register dump tool.
func MPURegisters() []RegisterInfo {
	return []RegisterInfo{
		{Address: regSmplrtDiv, Name: "SMPLRT_DIV", Access: "RW", Desc: "Sample rate divider", Fields: []BitField{
			{Bits: "7:0", Name: "SMPLRT_DIV", Desc: "Rate = internal rate / (1 + div)"},
		}},
		{Address: regConfig, Name: "CONFIG", Access: "RW", Desc: "Gyro DLPF and FIFO mode", Fields: []BitField{
			{Bits: "6", Name: "FIFO_MODE", Desc: "FIFO full behavior", Values: "0=overwrite, 1=block"},
			{Bits: "2:0", Name: "DLPF_CFG", Desc: "Gyro low-pass filter", Values: "0=250Hz, 1=184Hz, 2=92Hz, 3=41Hz, 4=20Hz, 5=10Hz, 6=5Hz"},
		}},
		{Address: regGyroConfig, Name: "GYRO_CONFIG", Access: "RW", Desc: "Gyro range", Fields: []BitField{
			{Bits: "4:3", Name: "GYRO_FS_SEL", Desc: "Full scale range", Values: "0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s"},
			{Bits: "1:0", Name: "Fchoice_b", Desc: "DLPF bypass", Values: "0=DLPF enabled"},
		}},
		{Address: regAccelConfig, Name: "ACCEL_CONFIG", Access: "RW", Desc: "Accel range", Fields: []BitField{
			{Bits: "4:3", Name: "ACCEL_FS_SEL", Desc: "Full scale range", Values: "0=±2g, 1=±4g, 2=±8g, 3=±16g"},
		}},
		{Address: regAccelConfig2, Name: "ACCEL_CONFIG2", Access: "RW", Desc: "Accel DLPF and FIFO size", Fields: []BitField{
			{Bits: "6", Name: "FIFO_SIZE", Desc: "1024-byte FIFO partition"},
			{Bits: "3", Name: "accel_fchoice_b", Desc: "DLPF bypass", Values: "0=enabled, 1=bypass"},
			{Bits: "2:0", Name: "A_DLPFCFG", Desc: "Accel low-pass filter", Values: "0=460Hz, 1=184Hz, 2=92Hz, 3=41Hz, 4=20Hz, 5=10Hz, 6=5Hz"},
		}},
		{Address: regFIFOEn, Name: "FIFO_EN", Access: "RW", Desc: "FIFO source select", Fields: []BitField{
			{Bits: "6", Name: "GYRO_XOUT", Desc: "Gyro X to FIFO"},
			{Bits: "5", Name: "GYRO_YOUT", Desc: "Gyro Y to FIFO"},
			{Bits: "4", Name: "GYRO_ZOUT", Desc: "Gyro Z to FIFO"},
			{Bits: "3", Name: "ACCEL", Desc: "Accel to FIFO"},
			{Bits: "0", Name: "SLV_0", Desc: "I2C slave 0 to FIFO"},
		}},
		{Address: regI2CMstCtrl, Name: "I2C_MST_CTRL", Access: "RW", Desc: "Internal I2C master control", Fields: []BitField{
			{Bits: "7", Name: "MULT_MST_EN", Desc: "Multi-master enable"},
			{Bits: "4", Name: "WAIT_FOR_ES", Desc: "Delay data ready until external sensor loads"},
			{Bits: "3:0", Name: "I2C_MST_CLK", Desc: "Master clock speed", Values: "13=400kHz"},
		}},
		{Address: regI2CSlv0Addr, Name: "I2C_SLV0_ADDR", Access: "RW", Desc: "Slave 0 address", Fields: []BitField{
			{Bits: "7", Name: "I2C_SLV0_RNW", Desc: "Transfer direction", Values: "0=write, 1=read"},
			{Bits: "6:0", Name: "I2C_ID_0", Desc: "7-bit slave address"},
		}},
		{Address: regI2CSlv0Reg, Name: "I2C_SLV0_REG", Access: "RW", Desc: "Slave 0 start register"},
		{Address: regI2CSlv0Ctrl, Name: "I2C_SLV0_CTRL", Access: "RW", Desc: "Slave 0 control", Fields: []BitField{
			{Bits: "7", Name: "I2C_SLV0_EN", Desc: "Enable transfers"},
			{Bits: "3:0", Name: "I2C_SLV0_LENG", Desc: "Bytes per transfer"},
		}},
		{Address: regIntPinCfg, Name: "INT_PIN_CFG", Access: "RW", Desc: "Interrupt pin and bypass", Fields: []BitField{
			{Bits: "7", Name: "ACTL", Desc: "Active-low interrupt"},
			{Bits: "5", Name: "LATCH_INT_EN", Desc: "Latch until cleared"},
			{Bits: "1", Name: "BYPASS_EN", Desc: "Route aux I2C to host"},
		}},
		{Address: regIntEnable, Name: "INT_ENABLE", Access: "RW", Desc: "Interrupt sources", Fields: []BitField{
			{Bits: "1", Name: "DMP_INT_EN", Desc: "Motion processor interrupt"},
			{Bits: "0", Name: "RAW_RDY_EN", Desc: "Raw data ready interrupt"},
		}},
		{Address: regIntStatus, Name: "INT_STATUS", Access: "R", Desc: "Interrupt status"},
		{Address: regUserCtrl, Name: "USER_CTRL", Access: "RW", Desc: "FIFO, DMP and I2C master switches", Fields: []BitField{
			{Bits: "7", Name: "DMP_EN", Desc: "Motion processor running"},
			{Bits: "6", Name: "FIFO_EN", Desc: "FIFO enabled"},
			{Bits: "5", Name: "I2C_MST_EN", Desc: "Internal I2C master enabled"},
			{Bits: "3", Name: "DMP_RST", Desc: "Reset motion processor"},
			{Bits: "2", Name: "FIFO_RST", Desc: "Reset FIFO"},
		}},
		{Address: regPwrMgmt1, Name: "PWR_MGMT_1", Access: "RW", Desc: "Power management", Fields: []BitField{
			{Bits: "7", Name: "H_RESET", Desc: "Device reset"},
			{Bits: "6", Name: "SLEEP", Desc: "Sleep mode"},
			{Bits: "2:0", Name: "CLKSEL", Desc: "Clock source", Values: "0=internal, 1=auto PLL"},
		}},
		{Address: regPwrMgmt2, Name: "PWR_MGMT_2", Access: "RW", Desc: "Per-axis sensor enables"},
		{Address: regFIFOCountH, Name: "FIFO_COUNTH", Access: "R", Desc: "FIFO byte count, high byte"},
		{Address: regFIFOCountH + 1, Name: "FIFO_COUNTL", Access: "R", Desc: "FIFO byte count, low byte"},
		{Address: regWhoAmI, Name: "WHO_AM_I", Access: "R", Desc: "Device ID, reads 0x71"},
	}
}

// AKRegisters lists the AK8963 magnetometer registers, readable through
// bypass mode.
func AKRegisters() []RegisterInfo {
	return []RegisterInfo{
		{Address: akRegWIA, Name: "WIA", Access: "R", Desc: "Device ID, reads 0x48"},
		{Address: akRegST1, Name: "ST1", Access: "R", Desc: "Data status", Fields: []BitField{
			{Bits: "1", Name: "DOR", Desc: "Data overrun"},
			{Bits: "0", Name: "DRDY", Desc: "Data ready"},
		}},
		{Address: akRegST2, Name: "ST2", Access: "R", Desc: "Measurement status", Fields: []BitField{
			{Bits: "4", Name: "BITM", Desc: "Output width", Values: "0=14-bit, 1=16-bit"},
			{Bits: "3", Name: "HOFL", Desc: "Sensor overflow"},
		}},
		{Address: akRegCNTL, Name: "CNTL1", Access: "RW", Desc: "Operation mode", Fields: []BitField{
			{Bits: "4", Name: "BIT", Desc: "Output width", Values: "0=14-bit, 1=16-bit"},
			{Bits: "3:0", Name: "MODE", Desc: "Mode", Values: "0=power down, 6=continuous 100Hz, 15=fuse ROM"},
		}},
		{Address: akRegASAX, Name: "ASAX", Access: "R", Desc: "X sensitivity adjustment, (v-128)/256+1"},
		{Address: akRegASAX + 1, Name: "ASAY", Access: "R", Desc: "Y sensitivity adjustment"},
		{Address: akRegASAX + 2, Name: "ASAZ", Access: "R", Desc: "Z sensitivity adjustment"},
	}
}

// DumpRegisters reads every register in infos at the given device
// address. The sampling loop keeps running; reads are interleaved on the
// shared bus.
func (d *Driver) DumpRegisters(addr uint16, infos []RegisterInfo) ([]RegisterValue, error) {
	d.bus.Claim()
	defer d.bus.Release()
	defer d.bus.SetAddress(MPUAddress)

	d.bus.SetAddress(addr)
	out := make([]RegisterValue, 0, len(infos))
	for _, info := range infos {
		v, err := d.bus.ReadReg(info.Address)
		if err != nil {
			return nil, fmt.Errorf("imu: reading %s (0x%02x): %w", info.Name, info.Address, err)
		}
		out = append(out, RegisterValue{RegisterInfo: info, Value: v})
	}
	return out, nil
}
