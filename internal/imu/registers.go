// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// MPU-9250 register map (7-bit I2C address 0x68, AD0 low).
const (
	MPUAddress = 0x68

	regSelfTestXGyro = 0x00
	regXGOffsetH     = 0x13
	regXGOffsetL     = 0x14
	regYGOffsetH     = 0x15
	regYGOffsetL     = 0x16
	regZGOffsetH     = 0x17
	regZGOffsetL     = 0x18
	regSmplrtDiv     = 0x19
	regConfig        = 0x1A
	regGyroConfig    = 0x1B
	regAccelConfig   = 0x1C
	regAccelConfig2  = 0x1D
	regFIFOEn        = 0x23
	regI2CMstCtrl    = 0x24
	regI2CSlv0Addr   = 0x25
	regI2CSlv0Reg    = 0x26
	regI2CSlv0Ctrl   = 0x27
	regIntPinCfg     = 0x37
	regIntEnable     = 0x38
	regIntStatus     = 0x3A
	regAccelXoutH    = 0x3B
	regTempOutH      = 0x41
	regGyroXoutH     = 0x43
	regUserCtrl      = 0x6A
	regPwrMgmt1      = 0x6B
	regPwrMgmt2      = 0x6C
	regBankSel       = 0x6D
	regMemStartAddr  = 0x6E
	regMemRW         = 0x6F
	regPrgmStartH    = 0x70
	regFIFOCountH    = 0x72
	regFIFORW        = 0x74
	regWhoAmI        = 0x75

	whoAmIValue = 0x71
)

// AK8963 magnetometer (on-die, 7-bit I2C address 0x0C, reachable through
// the bypass mux or the internal I2C master).
const (
	AKAddress = 0x0C

	akRegWIA   = 0x00
	akRegST1   = 0x02
	akRegXoutL = 0x03
	akRegST2   = 0x09
	akRegCNTL  = 0x0A
	akRegASAX  = 0x10

	akWIAValue = 0x48

	akModePowerDown = 0x00
	akModeFuseROM   = 0x0F
	// 16-bit output, continuous measurement mode 2 (100 Hz).
	akModeCont16 = 0x16
)

// Register bit fields.
const (
	bitHReset   = 0x80 // PWR_MGMT_1
	bitSleep    = 0x40 // PWR_MGMT_1
	bitClkPLL   = 0x01 // PWR_MGMT_1 clock source: auto-select PLL
	bitPwrDown  = 0x3F // PWR_MGMT_2 all axes off

	bitFIFOEnable  = 0x40 // USER_CTRL
	bitI2CMstEn    = 0x20 // USER_CTRL
	bitFIFOReset   = 0x04 // USER_CTRL
	bitDMPReset    = 0x08 // USER_CTRL
	bitDMPEnable   = 0x80 // USER_CTRL

	bitDMPIntEn   = 0x02 // INT_ENABLE
	bitRawRdyEn   = 0x01 // INT_ENABLE

	bitBypassEn   = 0x02 // INT_PIN_CFG
	bitActiveLow  = 0x80 // INT_PIN_CFG
	bitLatchIntEn = 0x20 // INT_PIN_CFG

	bitFIFOSlv0En  = 0x01 // FIFO_EN
	bitFIFOGyroZEn = 0x10
	bitFIFOGyroYEn = 0x20
	bitFIFOGyroXEn = 0x40
	bitFIFOAccelEn = 0x08

	bitI2CSlvEn = 0x80 // I2C_SLVx_CTRL
	bitI2CRead  = 0x80 // I2C_SLVx_ADDR

	bitMultMstEn    = 0x80 // I2C_MST_CTRL
	i2cMstClk400kHz = 0x0D // I2C_MST_CTRL clock divider

	bitFIFOSize1024 = 0x40 // ACCEL_CONFIG2
	bitFChoiceB     = 0x08 // ACCEL_CONFIG2 bypass accel DLPF
)
