package course

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
)

// XML outline import. Element names are block categories, nesting is the
// tree shape:
//
//	<course id="course-v1:Demo" display_name="Demo" policy="letter">
//	  <chapter id="week1">
//	    <sequential id="hw1" graded="true">
//	      <problem id="p1" weight="5" graded="true"/>
//	      <html id="notes"/>
//	    </sequential>
//	  </chapter>
//	</course>

type outlineNode struct {
	XMLName     xml.Name
	ID          string        `xml:"id,attr"`
	DisplayName string        `xml:"display_name,attr"`
	Weight      string        `xml:"weight,attr"`
	Graded      string        `xml:"graded,attr"`
	Policy      string        `xml:"policy,attr"`
	Children    []outlineNode `xml:",any"`
}

// ParseOutlineXML reads a nested course outline and flattens it into a
// Snapshot. The returned snapshot still needs Tree() to validate structure.
func ParseOutlineXML(r io.Reader) (Snapshot, error) {
	var root outlineNode
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return Snapshot{}, fmt.Errorf("parse outline: %w", err)
	}
	if root.XMLName.Local != string(CategoryCourse) {
		return Snapshot{}, fmt.Errorf("outline root must be <course>, got <%s>", root.XMLName.Local)
	}
	if root.ID == "" {
		return Snapshot{}, fmt.Errorf("outline <course> needs an id attribute")
	}

	snap := Snapshot{
		CourseID:   root.ID,
		Root:       BlockID(root.ID),
		PolicyName: root.Policy,
	}
	if err := flattenOutline(root, &snap.Blocks); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func flattenOutline(n outlineNode, out *[]Block) error {
	if n.ID == "" {
		return fmt.Errorf("outline <%s> needs an id attribute", n.XMLName.Local)
	}
	b := Block{
		ID:          BlockID(n.ID),
		Category:    Category(n.XMLName.Local),
		DisplayName: n.DisplayName,
	}
	if n.Weight != "" {
		w, err := strconv.ParseFloat(n.Weight, 64)
		if err != nil {
			return fmt.Errorf("outline block %s: bad weight %q", n.ID, n.Weight)
		}
		b.Weight = &w
	}
	if n.Graded != "" {
		g, err := strconv.ParseBool(n.Graded)
		if err != nil {
			return fmt.Errorf("outline block %s: bad graded %q", n.ID, n.Graded)
		}
		b.Graded = g
	}
	for _, c := range n.Children {
		b.Children = append(b.Children, BlockID(c.ID))
	}
	*out = append(*out, b)
	for _, c := range n.Children {
		if err := flattenOutline(c, out); err != nil {
			return err
		}
	}
	return nil
}
