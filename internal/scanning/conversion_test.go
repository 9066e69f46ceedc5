package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func encodePNG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

func encodeJPEG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	Expect(jpeg.Encode(&buf, img, nil)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("prepareImageData", func() {
	var (
		input       []byte
		contentType string
		output      []byte
		err         error
	)

	JustBeforeEach(func() {
		output, err = prepareImageData(input, contentType)
	})

	When("the image is a small PNG", func() {
		BeforeEach(func() {
			input = encodePNG(200, 100)
			contentType = "image/png"
		})

		It("passes it through untouched", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(output).To(Equal(input))
		})
	})

	When("the image is wider than the limit", func() {
		BeforeEach(func() {
			input = encodePNG(2048, 1000)
			contentType = "image/png"
		})

		It("scales it down keeping the aspect ratio", func() {
			Expect(err).NotTo(HaveOccurred())
			cfg, derr := png.DecodeConfig(bytes.NewReader(output))
			Expect(derr).NotTo(HaveOccurred())
			Expect(cfg.Width).To(Equal(maxWidth))
			Expect(cfg.Height).To(Equal(500))
		})
	})

	When("the image is a JPEG", func() {
		BeforeEach(func() {
			input = encodeJPEG(64, 32)
			contentType = " IMAGE/JPEG "
		})

		It("converts it to PNG", func() {
			Expect(err).NotTo(HaveOccurred())
			cfg, derr := png.DecodeConfig(bytes.NewReader(output))
			Expect(derr).NotTo(HaveOccurred())
			Expect(cfg.Width).To(Equal(64))
		})
	})

	When("no content type is given", func() {
		BeforeEach(func() {
			input = encodeJPEG(16, 16)
			contentType = ""
		})

		It("detects the format from the data", func() {
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("the data is not an image", func() {
		BeforeEach(func() {
			input = []byte("plain text")
			contentType = "image/jpeg"
		})

		It("returns an unsupported format error", func() {
			Expect(err).To(MatchError(ContainSubstring("unsupported image format")))
		})
	})

	When("the data is empty", func() {
		BeforeEach(func() {
			input = nil
			contentType = "image/png"
		})

		It("returns an error", func() {
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("HEIC detection", func() {
	It("recognises the ftyp brand", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypheic0000"))).To(BeTrue())
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypmp420000"))).To(BeFalse())
		Expect(isHEICFormat([]byte("short"))).To(BeFalse())
	})

	It("recognises the MIME types", func() {
		Expect(isHEICMimeType("image/heic")).To(BeTrue())
		Expect(isHEICMimeType("image/heif")).To(BeTrue())
		Expect(isHEICMimeType("image/png")).To(BeFalse())
	})
})
