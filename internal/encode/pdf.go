package encode

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
)

// Standard US Letter page geometry, matching the slide deck exports the
// frontend produced.
const (
	pageWidth  = 612
	pageHeight = 792
)

// Document serializes a slide set as a minimal PDF: one page per decodable
// slide, each page a single image XObject scaled to fill the page. The
// byte layout is built by hand — header, contiguous objects numbered from
// 1, a cross-reference table with offsets measured from the actual emitted
// bytes, and a trailer pointing at the catalog. Slides whose image fails
// to decode are skipped; the page tree count always matches the pages
// embedded. Returns the document and the number of pages.
func Document(slideList []entity.Slide) ([]byte, int, error) {
	type pageImage struct {
		jpeg   []byte
		width  int
		height int
	}

	var images []pageImage
	for _, slide := range slideList {
		img, _, err := image.Decode(bytes.NewReader(slide.Image))
		if err != nil {
			continue
		}
		var jbuf bytes.Buffer
		if err := jpeg.Encode(&jbuf, img, &jpeg.Options{Quality: 90}); err != nil {
			continue
		}
		bounds := img.Bounds()
		images = append(images, pageImage{jpeg: jbuf.Bytes(), width: bounds.Dx(), height: bounds.Dy()})
	}

	// Objects 1 and 2 are the catalog and page tree; each page then takes
	// three objects in order: image XObject, content stream, page.
	pageObj := func(i int) int { return 3 + 3*i + 2 }

	w := newPDFWriter()
	w.header("%PDF-1.4\n")

	w.object(1, []byte("<<\n/Type /Catalog\n/Pages 2 0 R\n>>\n"))

	var kids bytes.Buffer
	for i := range images {
		if i > 0 {
			kids.WriteByte(' ')
		}
		fmt.Fprintf(&kids, "%d 0 R", pageObj(i))
	}
	w.object(2, []byte(fmt.Sprintf("<<\n/Type /Pages\n/Kids [%s]\n/Count %d\n>>\n", kids.String(), len(images))))

	for i, img := range images {
		imageNum := 3 + 3*i
		contentNum := imageNum + 1
		pageNum := imageNum + 2

		var imgObj bytes.Buffer
		fmt.Fprintf(&imgObj, "<<\n/Type /XObject\n/Subtype /Image\n/Width %d\n/Height %d\n/ColorSpace /DeviceRGB\n/BitsPerComponent 8\n/Filter /DCTDecode\n/Length %d\n>>\nstream\n", img.width, img.height, len(img.jpeg))
		imgObj.Write(img.jpeg)
		imgObj.WriteString("\nendstream\n")
		w.object(imageNum, imgObj.Bytes())

		content := fmt.Sprintf("q\n%d 0 0 %d 0 0 cm\n/Im%d Do\nQ\n", pageWidth, pageHeight, i+1)
		w.object(contentNum, []byte(fmt.Sprintf("<<\n/Length %d\n>>\nstream\n%sendstream\n", len(content), content)))

		page := fmt.Sprintf("<<\n/Type /Page\n/Parent 2 0 R\n/MediaBox [0 0 %d %d]\n/Resources <<\n  /XObject <<\n    /Im%d %d 0 R\n  >>\n>>\n/Contents %d 0 R\n>>\n", pageWidth, pageHeight, i+1, imageNum, contentNum)
		w.object(pageNum, []byte(page))
	}

	return w.finish(), len(images), nil
}

// pdfWriter accumulates the document body while tracking the byte offset
// of every object for the cross-reference table. Offsets depend on the
// cumulative length of all prior bytes, so emission is strictly sequential.
type pdfWriter struct {
	buf     bytes.Buffer
	offsets []int64
}

func newPDFWriter() *pdfWriter {
	return &pdfWriter{}
}

func (w *pdfWriter) header(s string) {
	w.buf.WriteString(s)
}

func (w *pdfWriter) object(num int, body []byte) {
	w.offsets = append(w.offsets, int64(w.buf.Len()))
	fmt.Fprintf(&w.buf, "%d 0 obj\n", num)
	w.buf.Write(body)
	w.buf.WriteString("endobj\n")
}

func (w *pdfWriter) finish() []byte {
	xrefStart := w.buf.Len()
	size := len(w.offsets) + 1

	fmt.Fprintf(&w.buf, "xref\n0 %d\n", size)
	w.buf.WriteString("0000000000 65535 f \n")
	for _, off := range w.offsets {
		fmt.Fprintf(&w.buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&w.buf, "trailer\n<<\n/Size %d\n/Root 1 0 R\n>>\nstartxref\n%d\n%%%%EOF\n", size, xrefStart)

	return w.buf.Bytes()
}
